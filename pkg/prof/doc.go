// Package prof reconstructs a profiler's in-memory object model from an
// execution trace log.
//
// Quick start:
//
//	ft, _, err := prof.DetectFileType("prof_0.log")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	state := prof.NewState(0)
//	d, _ := prof.NewDeserializer(ft, state)
//	if err := d.Parse("prof_0.log", prof.ParseOptions{}); err != nil {
//	    log.Fatal(err)
//	}
//	state.AttachFillsToChannels()
//	state.AttachCopiesToChannels()
//	state.SortTimeRanges()
//	state.CheckOperationParents()
//	state.LinkInstances()
//
// The five post-processing calls must run in exactly that order; each pass
// establishes invariants the next one depends on. A State belongs to a single
// reconstruction run and is not safe for concurrent use.
package prof
