// Package placeholder resolves ${name} lookups and @{expr} expressions inside
// case parameters, assertions and suite-local exports.
//
// Expressions use HCL expression syntax evaluated against the case-local
// scope. Helper functions (urlEncode, uuidStr, bucketOrdinal, bucketName and
// a few string/collection helpers) come from the RunState shared by a run.
package placeholder
