/*
Package ports defines the driven ports (interfaces) of the conformance runner.

These interfaces decouple the engine from concrete service clients, suite
sources, report persistence and report containers.

# Key Interfaces

  - ClientBinding / BindingProvider: one client per configured identity.
  - SuiteLoader: supplies already-decoded suite definitions.
  - ReportStore: persists run reports (memory, file, Redis).
  - ReportSink: serializes report sheets into a container (xmind).
  - Counter: the process-wide monotonic counter used for unique names.
  - DistributedLocker: keeps two runners off the same service.
*/
package ports
