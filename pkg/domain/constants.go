package domain

// Field names shared by suite files, serialized notes and reports.
const (
	KeyTitle       = "title"
	KeyOperation   = "operation"
	KeyClient      = "clientName"
	KeyParameters  = "parameters"
	KeyAssertion   = "assertion"
	KeySuiteLocals = "suiteLocals"
	KeySuites      = "suites"
	KeyResponse    = "response"
	KeyErrorInfo   = "errorInfo"
	KeySuccess     = "__case_success__"

	// KeyHide and KeyNotHide wrap named branches to force their visibility.
	KeyHide    = "__hide__"
	KeyNotHide = "__not_hide__"

	// KeyClosedSize marks an assertion mapping whose key count must match the response.
	KeyClosedSize = "__equals_in_size__"

	// StatusCodePath is the dotted response path carrying the HTTP status code.
	StatusCodePath = "ResponseMetadata.HTTPStatusCode"
)

// PathSeparator joins case titles in fullPath and visiblePath.
const PathSeparator = "::"

// AnonymousIdentity is the identity name bound to an unsigned client.
const AnonymousIdentity = "anonymous"

// AdminIdentity is the identity used by the default teardown case.
const AdminIdentity = "admin"
