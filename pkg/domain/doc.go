/*
Package domain contains the core models of the conformance runner.

It defines the authored suite tree, the linear suites produced by expanding it,
the external topic tree used for mind-map reports, and the run summary. The
package performs no I/O; its only dependency is the YAML codec used to keep
branch order when suite definitions are decoded.

# Key Entities

  - CaseNode: one step of a suite (an operation call with parameters and an assertion).
  - SuiteDefinition: an authored, possibly forking tree of branches.
  - LinearSuite: one fork-free execution path with its derived paths.
  - TopicNode: the hierarchical mind-map form used for import and export.
  - Summary and RunReport: aggregated outcomes of one service run.
*/
package domain
