/*
Package s3conform runs data-driven conformance suites against an S3-compatible
storage service.

Suites are authored as YAML files (one directory per service) or as mind-map
archives. Every suite definition expands into linear suites, one per path
through its forks, and each linear suite runs its cases in order against a
client bound to the identity the case names. Responses are checked against
partial expected shapes; the first failing case fails the suite and skips the
rest.

# Usage

	cfg, err := s3conform.LoadConfig("config.yaml")
	if err != nil {
		log.Fatal(err)
	}

	runner, err := s3conform.New(cfg, s3conform.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	defer runner.Close()

	res, err := runner.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}
	if res.Failed() {
		os.Exit(1)
	}

Every component can be replaced through options: the suite loader, the client
driver (WithBindingProvider), the report store, the report container sink, the
bucket ordinal counter and the per-service lock. Components that are not
injected are built from the configuration file.
*/
package s3conform
