/*
Package mindmap converts between linear suites and the hierarchical topic
trees stored in mind-map reports.

Import walks a topic tree and rebuilds a SuiteDefinition: a single child
continues the current branch, several children fork it. Export groups
classified suites into PASS, FAILED and SKIPPED trees, merging nodes that
share a MergeKey at the same depth.
*/
package mindmap
