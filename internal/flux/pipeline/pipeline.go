package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l1flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
	"github.com/banshee-data/flux.recovery/internal/flux/l4sectors"
	"github.com/banshee-data/flux.recovery/internal/flux/l5fusion"
	"github.com/banshee-data/flux.recovery/internal/flux/l6protection"
	"github.com/banshee-data/flux.recovery/internal/monitoring"
	"github.com/banshee-data/flux.recovery/internal/timeutil"
)

// Pipeline decodes captures with a fixed configuration. A Pipeline may run
// several captures, one after another or concurrently.
type Pipeline struct {
	cfg   Config
	fuser l5fusion.Fuser
}

// New validates cfg. Configuration errors are the only errors that stop a
// run before it starts.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v, err := l5fusion.NewVoter(cfg.Fusion)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, fuser: v}, nil
}

// runState is the state shared by the workers of one run.
type runState struct {
	mu      sync.Mutex
	results []TrackResult

	tracks   atomic.Int64
	sectors  atomic.Int64
	bits     atomic.Int64
	weakBits atomic.Int64
	done     atomic.Int64
}

func (s *runState) add(r TrackResult) int {
	s.mu.Lock()
	s.results = append(s.results, r)
	s.mu.Unlock()
	return int(s.done.Add(1))
}

// Run decodes every track. Tracks are independent; a failing track is
// recorded in its TrackResult and never stops the others. Cancelling ctx
// stops new tracks from starting; tracks already running finish, the rest
// are reported as skipped with MISSING statuses, and ctx.Err() is returned
// together with the report.
func (p *Pipeline) Run(ctx context.Context, tracks []*l1flux.Track, obs Observer) (*Report, error) {
	if len(tracks) == 0 {
		return nil, flux.InvalidArgf("no tracks to decode")
	}
	if obs == nil {
		obs = nopObserver{}
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Format:  p.cfg.Decode.Format.Name,
		Started: p.cfg.Clock.Now(),
	}
	monitoring.Logf("[pipeline] run %s: %d tracks, format %s, %d workers", report.RunID, len(tracks), report.Format, p.cfg.Workers)

	st := &runState{}
	total := len(tracks)
	jobs := make(chan *l1flux.Track, p.cfg.Workers*2)
	started := make(map[flux.TrackKey]bool, total)
	var startedMu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				if ctx.Err() != nil {
					continue
				}
				startedMu.Lock()
				started[t.Key()] = true
				startedMu.Unlock()

				obs.Observe(ProgressEvent{Kind: EventTrackStarted, Track: t.Key(), Done: int(st.done.Load()), Total: total})
				res := p.processTrack(t)
				st.tracks.Add(1)
				st.sectors.Add(int64(len(res.Sectors)))
				if res.Fusion != nil {
					st.bits.Add(int64(res.Fusion.VotedLength))
					st.weakBits.Add(int64(len(res.Fusion.WeakPositions)))
				}
				done := st.add(res)

				kind := EventTrackDone
				if res.Err != nil {
					kind = EventTrackFailed
				}
				obs.Observe(ProgressEvent{Kind: kind, Track: res.Key, Done: done, Total: total, Err: res.Err})
			}
		}()
	}

feed:
	for _, t := range tracks {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- t:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for _, t := range tracks {
		if !started[t.Key()] {
			st.results = append(st.results, p.skippedTrack(t.Key()))
			obs.Observe(ProgressEvent{Kind: EventTrackSkipped, Track: t.Key(), Done: int(st.done.Load()), Total: total})
		}
	}

	sort.Slice(st.results, func(i, j int) bool { return st.results[i].Key.Less(st.results[j].Key) })
	report.Tracks = st.results
	for i := range report.Tracks {
		tr := &report.Tracks[i]
		report.Statuses = append(report.Statuses, tr.Sectors...)
		if tr.Protection != nil && (report.Protection == nil || tr.Protection.Confidence > report.Protection.Confidence) {
			report.Protection = tr.Protection
		}
	}
	report.Counters = Counters{
		Tracks:   st.tracks.Load(),
		Sectors:  st.sectors.Load(),
		Bits:     st.bits.Load(),
		WeakBits: st.weakBits.Load(),
	}
	report.Finished = p.cfg.Clock.Now()

	err := ctx.Err()
	if err != nil {
		report.Cancelled = true
		monitoring.Logf("[pipeline] run %s cancelled after %d of %d tracks: %v", report.RunID, report.Counters.Tracks, total, err)
	} else {
		monitoring.Logf("[pipeline] run %s: %d sectors, %d usable, mean quality %.1f%%", report.RunID, len(report.Statuses), report.Usable(), report.MeanQuality()*100)
	}
	obs.Observe(ProgressEvent{Kind: EventRunDone, Done: int(st.done.Load()), Total: total, Err: err})
	return report, err
}

func (p *Pipeline) expected(key flux.TrackKey) *l4sectors.Table {
	f := p.cfg.Decode.Format
	tbl := l4sectors.NewTable()
	tbl.Expect(key.Cylinder, key.Head, f.SectorIDs(key.Cylinder), f.SectorSize())
	return tbl
}

func (p *Pipeline) skippedTrack(key flux.TrackKey) TrackResult {
	return TrackResult{Key: key, Skipped: true, Sectors: p.expected(key).Sorted()}
}

// processTrack runs one track strictly in order: synchronise and decode
// every revolution, fuse, decode the fused stream, vote sectors and, on
// the reference track, look for protection.
func (p *Pipeline) processTrack(t *l1flux.Track) (res TrackResult) {
	start := p.cfg.Clock.Now()
	key := t.Key()
	res = TrackResult{Key: key}
	tbl := p.expected(key)
	defer func() {
		res.Sectors = tbl.Sorted()
		res.Duration = p.cfg.Clock.Since(start)
	}()

	syncCfg, err := p.cfg.syncConfig(key.Cylinder)
	if err != nil {
		res.Err = err
		return res
	}
	pll, err := l2bits.NewSynchronizer(syncCfg)
	if err != nil {
		res.Err = err
		return res
	}
	dec, err := l3decode.NewTrackDecoder(p.cfg.Decode)
	if err != nil {
		res.Err = err
		return res
	}

	passes, records := p.decodePasses(key, t.Revolutions, pll, dec, tbl)
	res.Passes = len(passes)
	for _, ps := range passes {
		if ps.HasSync {
			res.SyncedPasses++
		}
	}
	if len(passes) == 0 {
		res.Err = fmt.Errorf("track %s has no decodable revolutions: %w", key, flux.ErrInsufficientPasses)
		monitoring.Logf("[pipeline] %v", res.Err)
		return res
	}

	fused, err := p.fuser.Fuse(passes)
	res.Fusion = fused
	if err != nil {
		res.Err = err
		monitoring.Logf("[pipeline] track %s: %v", key, err)
		return res
	}
	res.FusedDigest = fused.Digest()

	f := p.cfg.Decode.Format
	fusedDecode, err := dec.DecodeTrack(fused.Stream(), key)
	if err != nil && !errors.Is(err, flux.ErrSyncNotFound) {
		monitoring.Debugf("[pipeline] track %s fused decode: %v", key, err)
	}
	res.Votes = l5fusion.VoteSectors(f, key.Cylinder, key.Head, records)

	protected := make(map[int]bool)
	if key.Cylinder == p.cfg.Protection.ReferenceTrack && fusedDecode != nil {
		weak := l6protection.AnalyzeTrack(fused, fusedDecode, res.Votes)
		prof := l6protection.Detect(p.cfg.Protection, key.Cylinder, weak)
		res.Protection = &prof
		if prof.Detected {
			monitoring.Logf("[pipeline] track %s: %s", key, prof)
			for _, id := range prof.WeakSectors {
				protected[id] = true
			}
		}
	}

	if fusedDecode != nil {
		stream := fused.Stream()
		for i := range fusedDecode.Sectors {
			rec := &fusedDecode.Sectors[i]
			s, ok := l4sectors.FromRecord(rec, key.Cylinder, key.Head)
			if !ok {
				continue
			}
			if stream.WeakIn(rec.BitStart, rec.BitEnd) > 0 {
				s.Flags |= l4sectors.FlagWeak
			}
			if protected[rec.Sector] {
				s.Flags |= l4sectors.FlagProtection
			}
			tbl.Observe(s)
		}
	}
	for _, v := range res.Votes {
		if v.Status == nil {
			continue
		}
		if protected[v.Sector] {
			v.Status.Flags |= l4sectors.FlagProtection
		}
		tbl.Observe(v.Status)
	}
	return res
}

// decodePasses synchronises and decodes each revolution. Every decoded
// record is observed in tbl as it is found.
func (p *Pipeline) decodePasses(key flux.TrackKey, revs []*l1flux.Revolution, pll *l2bits.Synchronizer, dec l3decode.TrackDecoder, tbl *l4sectors.Table) ([]l5fusion.RevolutionDecode, []l3decode.SectorRecord) {
	var passes []l5fusion.RevolutionDecode
	var records []l3decode.SectorRecord
	for _, rev := range revs {
		stream, err := pll.Process(rev)
		if err != nil {
			monitoring.Debugf("[pipeline] track %s rev %d: %v", key, rev.Index, err)
		}
		if stream == nil || stream.Len() == 0 {
			continue
		}

		pass := l5fusion.RevolutionDecode{Index: rev.Index, Stream: stream, RPM: rev.RPM()}
		td, err := dec.DecodeTrack(stream, key)
		if err != nil && !errors.Is(err, flux.ErrSyncNotFound) {
			monitoring.Debugf("[pipeline] track %s rev %d decode: %v", key, rev.Index, err)
		}
		if td != nil {
			pass.SyncOffset, pass.HasSync = td.SyncOffset, td.HasSync
			records = append(records, td.Sectors...)
			drifted := len(stream.Stats.DriftResets) > 0
			for i := range td.Sectors {
				rec := &td.Sectors[i]
				s, ok := l4sectors.FromRecord(rec, key.Cylinder, key.Head)
				if !ok {
					continue
				}
				if drifted {
					s.Flags |= l4sectors.FlagSpeedDrift
				}
				if stream.WeakIn(rec.BitStart, rec.BitEnd) > 0 {
					s.Flags |= l4sectors.FlagJitter
				}
				tbl.Observe(s)
			}
		}
		passes = append(passes, pass)
	}
	return passes, records
}
