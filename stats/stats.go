// Package stats accumulates simulation outcomes into counters that can be
// merged in any order.
package stats

import (
	"encoding/json"
	"sort"

	"github.com/sarchlab/cachescope/mem/cache"
)

// Counters are the event counts of a core or of the whole run.
type Counters struct {
	Accesses           uint64 `json:"accesses"`
	Reads              uint64 `json:"reads"`
	Writes             uint64 `json:"writes"`
	Hits               uint64 `json:"hits"`
	Misses             uint64 `json:"misses"`
	Evictions          uint64 `json:"evictions"`
	Writebacks         uint64 `json:"writebacks"`
	Invalidations      uint64 `json:"invalidations"`
	FalseSharingEvents uint64 `json:"falseSharingEvents"`
	MissBreakdown
}

// MissBreakdown splits misses by cause.
type MissBreakdown struct {
	CompulsoryMisses uint64 `json:"compulsoryMisses"`
	CapacityMisses   uint64 `json:"capacityMisses"`
	ConflictMisses   uint64 `json:"conflictMisses"`
	CoherenceMisses  uint64 `json:"coherenceMisses"`
}

func (m *MissBreakdown) count(kind cache.MissKind) {
	switch kind {
	case cache.Compulsory:
		m.CompulsoryMisses++
	case cache.Capacity:
		m.CapacityMisses++
	case cache.Conflict:
		m.ConflictMisses++
	case cache.Coherence:
		m.CoherenceMisses++
	}
}

func (m *MissBreakdown) add(o MissBreakdown) {
	m.CompulsoryMisses += o.CompulsoryMisses
	m.CapacityMisses += o.CapacityMisses
	m.ConflictMisses += o.ConflictMisses
	m.CoherenceMisses += o.CoherenceMisses
}

// HitRate returns hits over accesses, or 0 without accesses.
func (c Counters) HitRate() float64 {
	if c.Accesses == 0 {
		return 0
	}

	return float64(c.Hits) / float64(c.Accesses)
}

// MissRate returns misses over accesses, or 0 without accesses.
func (c Counters) MissRate() float64 {
	if c.Accesses == 0 {
		return 0
	}

	return float64(c.Misses) / float64(c.Accesses)
}

func (c *Counters) add(o Counters) {
	c.Accesses += o.Accesses
	c.Reads += o.Reads
	c.Writes += o.Writes
	c.Hits += o.Hits
	c.Misses += o.Misses
	c.Evictions += o.Evictions
	c.Writebacks += o.Writebacks
	c.Invalidations += o.Invalidations
	c.FalseSharingEvents += o.FalseSharingEvents
	c.MissBreakdown.add(o.MissBreakdown)
}

// LineStats are the counts of a single cache line.
type LineStats struct {
	Accesses      uint64 `json:"accesses"`
	Misses        uint64 `json:"misses"`
	Invalidations uint64 `json:"invalidations"`
	Evictions     uint64 `json:"evictions"`
	MissBreakdown
}

// MissRate returns misses over accesses, or 0 without accesses.
func (l LineStats) MissRate() float64 {
	if l.Accesses == 0 {
		return 0
	}

	return float64(l.Misses) / float64(l.Accesses)
}

func (l *LineStats) add(o LineStats) {
	l.Accesses += o.Accesses
	l.Misses += o.Misses
	l.Invalidations += o.Invalidations
	l.Evictions += o.Evictions
	l.MissBreakdown.add(o.MissBreakdown)
}

// SourceStats are the counts of one source location. Threads lists the
// threads that executed it, in ascending order.
type SourceStats struct {
	Accesses uint64   `json:"accesses"`
	Hits     uint64   `json:"hits"`
	Misses   uint64   `json:"misses"`
	Threads  []uint32 `json:"threads"`
}

// MissRate returns misses over accesses, or 0 without accesses.
func (s SourceStats) MissRate() float64 {
	if s.Accesses == 0 {
		return 0
	}

	return float64(s.Misses) / float64(s.Accesses)
}

func (s *SourceStats) add(o SourceStats) {
	s.Accesses += o.Accesses
	s.Hits += o.Hits
	s.Misses += o.Misses

	for _, t := range o.Threads {
		s.addThread(t)
	}
}

func (s *SourceStats) addThread(t uint32) {
	i := sort.Search(len(s.Threads), func(i int) bool { return s.Threads[i] >= t })
	if i < len(s.Threads) && s.Threads[i] == t {
		return
	}

	s.Threads = append(s.Threads, 0)
	copy(s.Threads[i+1:], s.Threads[i:])
	s.Threads[i] = t
}

func (s SourceStats) clone() SourceStats {
	s.Threads = append([]uint32(nil), s.Threads...)
	return s
}

// An IncidentKey identifies a false sharing incident. CoreA is always lower
// than CoreB and OffsetA belongs to CoreA.
type IncidentKey struct {
	Line    uint64 `json:"line"`
	CoreA   int    `json:"coreA"`
	CoreB   int    `json:"coreB"`
	OffsetA uint64 `json:"offsetA"`
	OffsetB uint64 `json:"offsetB"`
}

func (k IncidentKey) less(o IncidentKey) bool {
	switch {
	case k.Line != o.Line:
		return k.Line < o.Line
	case k.CoreA != o.CoreA:
		return k.CoreA < o.CoreA
	case k.CoreB != o.CoreB:
		return k.CoreB < o.CoreB
	case k.OffsetA != o.OffsetA:
		return k.OffsetA < o.OffsetA
	default:
		return k.OffsetB < o.OffsetB
	}
}

// An Incident summarizes every false sharing event with the same key. The
// threads and locations are those of the first event.
type Incident struct {
	Count     uint64 `json:"count"`
	FirstSeen uint64 `json:"firstSeen"`
	ThreadA   uint32 `json:"threadA"`
	ThreadB   uint32 `json:"threadB"`
	LocationA string `json:"locationA,omitempty"`
	LocationB string `json:"locationB,omitempty"`
}

// before orders incidents of the same key so that merging picks the same
// representative regardless of merge order.
func (i Incident) before(o Incident) bool {
	switch {
	case i.FirstSeen != o.FirstSeen:
		return i.FirstSeen < o.FirstSeen
	case i.ThreadA != o.ThreadA:
		return i.ThreadA < o.ThreadA
	case i.ThreadB != o.ThreadB:
		return i.ThreadB < o.ThreadB
	case i.LocationA != o.LocationA:
		return i.LocationA < o.LocationA
	default:
		return i.LocationB < o.LocationB
	}
}

func (i Incident) merge(o Incident) Incident {
	first := i
	if o.before(i) {
		first = o
	}

	first.Count = i.Count + o.Count

	return first
}

// An IncidentRecord is an incident together with its key.
type IncidentRecord struct {
	IncidentKey
	Incident
}

// Stats is the result of a simulation.
type Stats struct {
	Global    Counters
	Malformed uint64

	// Cores is indexed by core id.
	Cores     []Counters
	Lines     map[uint64]LineStats
	Incidents map[IncidentKey]Incident

	// Sources is keyed by file:line. Accesses without a location are not
	// included.
	Sources map[string]SourceStats
}

// New creates empty stats for numCores cores.
func New(numCores int) *Stats {
	return &Stats{
		Cores:     make([]Counters, numCores),
		Lines:     make(map[uint64]LineStats),
		Incidents: make(map[IncidentKey]Incident),
		Sources:   make(map[string]SourceStats),
	}
}

func (s *Stats) core(id int) *Counters {
	for id >= len(s.Cores) {
		s.Cores = append(s.Cores, Counters{})
	}

	return &s.Cores[id]
}

// Clone returns a deep copy.
func (s *Stats) Clone() *Stats {
	c := &Stats{
		Global:    s.Global,
		Malformed: s.Malformed,
		Cores:     append([]Counters(nil), s.Cores...),
		Lines:     make(map[uint64]LineStats, len(s.Lines)),
		Incidents: make(map[IncidentKey]Incident, len(s.Incidents)),
		Sources:   make(map[string]SourceStats, len(s.Sources)),
	}

	for k, v := range s.Lines {
		c.Lines[k] = v
	}

	for k, v := range s.Incidents {
		c.Incidents[k] = v
	}

	for k, v := range s.Sources {
		c.Sources[k] = v.clone()
	}

	return c
}

// Merge adds other into s. Merging is associative and commutative.
func (s *Stats) Merge(other *Stats) {
	s.Global.add(other.Global)
	s.Malformed += other.Malformed

	for id, c := range other.Cores {
		s.core(id).add(c)
	}

	if s.Lines == nil {
		s.Lines = make(map[uint64]LineStats, len(other.Lines))
	}

	for k, v := range other.Lines {
		l := s.Lines[k]
		l.add(v)
		s.Lines[k] = l
	}

	if s.Incidents == nil {
		s.Incidents = make(map[IncidentKey]Incident, len(other.Incidents))
	}

	for k, v := range other.Incidents {
		if mine, ok := s.Incidents[k]; ok {
			v = mine.merge(v)
		}

		s.Incidents[k] = v
	}

	if s.Sources == nil {
		s.Sources = make(map[string]SourceStats, len(other.Sources))
	}

	for k, v := range other.Sources {
		src := s.Sources[k].clone()
		src.add(v)
		s.Sources[k] = src
	}
}

// SortedIncidents returns the incidents ordered by key.
func (s *Stats) SortedIncidents() []IncidentRecord {
	records := make([]IncidentRecord, 0, len(s.Incidents))
	for k, v := range s.Incidents {
		records = append(records, IncidentRecord{IncidentKey: k, Incident: v})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].IncidentKey.less(records[j].IncidentKey)
	})

	return records
}

type statsJSON struct {
	Global    Counters               `json:"global"`
	Malformed uint64                 `json:"malformed"`
	Cores     []Counters             `json:"cores"`
	Lines     map[uint64]LineStats   `json:"lines"`
	Incidents []IncidentRecord       `json:"incidents"`
	Sources   map[string]SourceStats `json:"sources"`
}

// MarshalJSON encodes the stats with incidents ordered by key, so equal
// stats always encode to the same bytes.
func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		Global:    s.Global,
		Malformed: s.Malformed,
		Cores:     s.Cores,
		Lines:     s.Lines,
		Incidents: s.SortedIncidents(),
		Sources:   s.Sources,
	})
}
