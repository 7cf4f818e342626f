// Package scraper runs crawl sessions against a data root.
//
// A run takes the data root lock, removes staged data left by an interrupted
// run, plans how the requested categories relate to the ledger and the
// placement registry, migrates prior data to the requested placements, and
// then crawls each category. Only items absent from the working ledger are
// grabbed; their records and media land in the staging area until the
// commit pipeline moves them to their placement and writes the ledger.
//
// Usage:
//
//	s, err := scraper.New(cfg, scraper.Deps{
//	    Crawler: crawler,
//	    Details: details,
//	    Fetcher: transport,
//	    Remote:  store,
//	    Chooser: prompter,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := s.Run(ctx, runConfig)
//
// Cancellation:
//
// Cancelling ctx at any point after migration removes staged data and
// writes neither the ledger nor the registry, so an interrupted run leaves
// the persisted state exactly as the previous run committed it.
package scraper
