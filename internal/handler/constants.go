package handler

// Route pattern constants for chi router registration.
const (
	// RouteRoot is the dashboard path.
	RouteRoot = "/"
	// RouteLogin is the login route.
	RouteLogin = "/login"
	// RouteLogout is the logout route.
	RouteLogout = "/logout"
	// RouteRegister is the invite-gated registration route.
	RouteRegister = "/register"
	// RouteInviteToken is the invite acceptance route pattern.
	RouteInviteToken = "/invite/{token}"

	// RouteBudgets is the budgets page route.
	RouteBudgets = "/budgets"
	// RouteTransactions is the transactions page route.
	RouteTransactions = "/transactions"
	// RouteCategories is the categories page route.
	RouteCategories = "/categories"
	// RouteSettings is the settings page route (admin only).
	RouteSettings = "/settings"
	// RouteUsers is the user management route (admin only).
	RouteUsers = "/users"
	// RouteEvents is the audit log route (admin only).
	RouteEvents = "/events"

	// RouteParamID is the ID parameter pattern.
	RouteParamID = "/{id}"
	// RouteSuffixNew is the suffix for "new" routes.
	RouteSuffixNew = "/new"

	// RouteBudgetsID is the budgets ID route pattern.
	RouteBudgetsID = RouteBudgets + RouteParamID
	// RouteTransactionsID is the transactions ID route pattern.
	RouteTransactionsID = RouteTransactions + RouteParamID
	// RouteCategoriesID is the categories ID route pattern.
	RouteCategoriesID = RouteCategories + RouteParamID
	// RouteUsersID is the users ID route pattern.
	RouteUsersID = RouteUsers + RouteParamID

	// RouteAPIPushSubscriptions is the push subscription API route.
	RouteAPIPushSubscriptions = "/api/push/subscriptions"
	// RouteAPIAuthSession is the session identity API route.
	RouteAPIAuthSession = "/api/auth/session"
	// RouteAPIAuthLogout is the session logout API route.
	RouteAPIAuthLogout = "/api/auth/logout"
)

const (
	redirectLogin        = RouteLogin
	redirectRoot         = RouteRoot
	redirectBudgets      = RouteBudgets
	redirectTransactions = RouteTransactions
	redirectCategories   = RouteCategories
	redirectSettings     = RouteSettings
	redirectUsers        = RouteUsers
)
