package prof

import (
	"cmp"
	"log/slog"
	"slices"
)

// The post-processing passes below run after raw parsing, in a fixed order:
//
//	AttachFillsToChannels
//	AttachCopiesToChannels
//	SortTimeRanges
//	CheckOperationParents
//	LinkInstances
//
// Later passes assume the invariants established by earlier ones. SortTimeRanges
// must see all channel entries, and the instance cross-references resolved by
// LinkInstances are only meaningful over a structurally consistent operation
// hierarchy.

func (s *State) channel(key ChannelKey) *Channel {
	ch, ok := s.Channels[key]
	if !ok {
		ch = &Channel{Key: key}
		s.Channels[key] = ch
	}
	return ch
}

// AttachFillsToChannels assigns every fill to the channel of its destination
// memory. Fill channels have no source memory.
func (s *State) AttachFillsToChannels() {
	for _, f := range s.Fills {
		ch := s.channel(ChannelKey{Dst: f.Dst})
		ch.Entries = append(ch.Entries, ChanEntry{
			EntryKind: EntryFill,
			FEvent:    f.FEvent,
			Op:        f.Op,
			Size:      f.Size,
			Range:     f.Range,
		})
	}
}

// AttachCopiesToChannels assigns every copy to the channel keyed by its
// source and destination memories.
func (s *State) AttachCopiesToChannels() {
	for _, c := range s.Copies {
		ch := s.channel(ChannelKey{Src: c.Src, Dst: c.Dst})
		ch.Entries = append(ch.Entries, ChanEntry{
			EntryKind: EntryCopy,
			FEvent:    c.FEvent,
			Op:        c.Op,
			Size:      c.Size,
			Range:     c.Range,
		})
	}
}

// SortTimeRanges puts every processor's and channel's entries into canonical
// temporal order (start time, then stop time). Any range-overlap or
// parent/child temporal reasoning downstream depends on this ordering.
func (s *State) SortTimeRanges() {
	for _, p := range s.Procs {
		slices.SortFunc(p.Entries, func(a, b ProcEntry) int {
			if c := cmp.Compare(a.Range.Start, b.Range.Start); c != 0 {
				return c
			}
			return cmp.Compare(a.Range.Stop, b.Range.Stop)
		})
	}
	for _, ch := range s.Channels {
		slices.SortFunc(ch.Entries, func(a, b ChanEntry) int {
			if c := cmp.Compare(a.Range.Start, b.Range.Start); c != 0 {
				return c
			}
			return cmp.Compare(a.Range.Stop, b.Range.Stop)
		})
	}
}

// CheckOperationParents verifies that every operation's parent id refers to
// an existing operation other than itself. A violation indicates a corrupt or
// version-mismatched log. Violations are logged and counted but do not abort
// reconstruction.
func (s *State) CheckOperationParents() int {
	violations := 0
	for _, op := range s.Operations {
		if op.Parent == 0 {
			continue
		}
		if op.Parent == op.ID {
			slog.Warn("operation is its own parent", "op", uint64(op.ID))
			violations++
			continue
		}
		if _, ok := s.Operations[op.Parent]; !ok {
			slog.Warn("operation references unknown parent",
				"op", uint64(op.ID), "parent", uint64(op.Parent))
			violations++
		}
	}
	return violations
}

// LinkInstances resolves the buffered cross-references onto instances:
// application-assigned names are applied, and copies/fills are linked to the
// instances they read or wrote. Instance names are only meaningful after this
// pass; name records may precede the instance's own timeline record in the
// log, and a name whose instance never logged a timeline still materializes a
// bare named instance.
func (s *State) LinkInstances() {
	for uid, name := range s.pendingNames {
		inst, ok := s.Instances[uid]
		if !ok {
			inst = &Instance{UID: uid}
			s.Instances[uid] = inst
		}
		inst.Name = name
	}
	for _, link := range s.pendingCopyLinks {
		c, ok := s.Copies[link.FEvent]
		if !ok {
			slog.Warn("copy instance link references unknown copy",
				"fevent", uint64(link.FEvent))
			continue
		}
		c.SrcInst = link.Src
		c.DstInst = link.Dst
		if inst, ok := s.Instances[link.Src]; ok {
			inst.Reads = append(inst.Reads, link.FEvent)
		}
		if inst, ok := s.Instances[link.Dst]; ok {
			inst.Writes = append(inst.Writes, link.FEvent)
		}
	}
	for _, link := range s.pendingFillLinks {
		f, ok := s.Fills[link.FEvent]
		if !ok {
			slog.Warn("fill instance link references unknown fill",
				"fevent", uint64(link.FEvent))
			continue
		}
		f.DstInst = link.Dst
		if inst, ok := s.Instances[link.Dst]; ok {
			inst.Writes = append(inst.Writes, link.FEvent)
		}
	}
	s.pendingNames = make(map[InstUID]string)
	s.pendingCopyLinks = nil
	s.pendingFillLinks = nil
}
