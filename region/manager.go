package region

import (
	"errors"
	"fmt"

	"github.com/epsic-dls/autodc/cluster"
	"github.com/epsic-dls/autodc/job"
)

// Source selects which cluster set the manager works against.
type Source int

const (
	SurveyClusters Source = iota
	SegmentedClusters
)

// ErrAlreadyMarked is returned by Mark when the enclosing cluster is
// already locked.
var ErrAlreadyMarked = errors.New("region: cluster already marked")

// ErrMissingCluster is returned when no cluster's mask contains the
// requested point.
var ErrMissingCluster = errors.New("region: no cluster at point")

// clusterEntry bundles a cluster, its grids (one per overlap direction),
// and its position in the ordering Reorder permutes.
type clusterEntry struct {
	cluster *Cluster
	source  *cluster.Cluster
	grids   []Grid
}

// Manager owns the grid state across every cluster of the active
// source, plus the persistent exported region list.
type Manager struct {
	source    Source
	imgSize   int
	clusters  []*clusterEntry
	exported  []ScanRegion
	tightenJob *job.Control
}

// NewManager constructs a Manager for a survey image of the given size.
func NewManager(imgSize int) *Manager {
	return &Manager{imgSize: imgSize}
}

// ChooseSource resets all grid state and loads the candidate clusters
// for subsequent Mark/Update calls.
func (m *Manager) ChooseSource(src Source, clusters []*cluster.Cluster) {
	m.source = src
	m.clusters = make([]*clusterEntry, len(clusters))
	for i, c := range clusters {
		m.clusters[i] = &clusterEntry{cluster: WrapCluster(c), source: c}
	}
	m.exported = nil
}

func (m *Manager) findEnclosing(x, y int) *clusterEntry {
	for _, e := range m.clusters {
		if e.source.Contains(x, y) {
			return e
		}
	}
	return nil
}

func (m *Manager) findByLabel(label int) *clusterEntry {
	for _, e := range m.clusters {
		if e.cluster.Label == label {
			return e
		}
	}
	return nil
}

// Mark finds the cluster enclosing (x, y), divides it into grids, and
// locks it so it cannot be marked again. Pitch/overlap parameters mirror
// Cluster.Divide.
func (m *Manager) Mark(x, y, pitch int, overlapFraction float64, directions []Overlap, res Resolution) error {
	entry := m.findEnclosing(x, y)
	if entry == nil {
		return ErrMissingCluster
	}
	if entry.cluster.Locked {
		return ErrAlreadyMarked
	}
	grids, err := entry.cluster.Divide(pitch, overlapFraction, directions, res, m.imgSize)
	if err != nil {
		return err
	}
	entry.grids = grids
	entry.cluster.Locked = true
	return nil
}

// Update re-divides an already-locked cluster, e.g. after a pitch or
// overlap parameter change.
func (m *Manager) Update(label, pitch int, overlapFraction float64, directions []Overlap, res Resolution) error {
	entry := m.findByLabel(label)
	if entry == nil {
		return ErrMissingCluster
	}
	grids, err := entry.cluster.Divide(pitch, overlapFraction, directions, res, m.imgSize)
	if err != nil {
		return err
	}
	entry.grids = grids
	return nil
}

// unit names one grid belonging to one locked cluster, the flat work
// item TightenAll's progress counter indexes into.
type unit struct {
	entry *clusterEntry
	grid  int
}

// TightenAll flattens every locked cluster's grids into a single
// ordered work list and tightens them one at a time, pauseable via the
// returned *job.Control. A pause blocks the goroutine in place rather
// than exiting it, so Resume continues from the same unit; Ctrl.Progress
// always reflects the index of the unit currently (or about to be)
// processed, so a caller that observes a pause and later restarts a
// fresh TightenAll call can pick the work list up from there.
func (m *Manager) TightenAll(matchFraction float64) (*job.Control, <-chan error) {
	ctrl := job.NewControl()
	m.tightenJob = ctrl
	done := make(chan error, 1)

	var units []unit
	for _, e := range m.clusters {
		if !e.cluster.Locked {
			continue
		}
		for i := range e.grids {
			units = append(units, unit{entry: e, grid: i})
		}
	}

	go func() {
		for i := 0; i < len(units); i++ {
			for ctrl.Status() == job.Paused {
			}
			if ctrl.Status() == job.Dead {
				done <- nil
				return
			}
			ctrl.SetProgress(i)

			u := units[i]
			if err := u.entry.grids[u.grid].Tighten(u.entry.cluster, matchFraction); err != nil {
				done <- err
				return
			}
		}
		ctrl.Finish()
		done <- nil
	}()

	return ctrl, done
}

// Export requires every grid across every locked cluster to be tight,
// appends their flattened regions to the persistent exported list, and
// returns it.
func (m *Manager) Export() ([]ScanRegion, error) {
	for _, e := range m.clusters {
		if !e.cluster.Locked {
			continue
		}
		for _, g := range e.grids {
			if !g.IsTight {
				return nil, fmt.Errorf("region: cluster %d has an untightened grid", e.cluster.Label)
			}
			m.exported = append(m.exported, g.TightRegions...)
		}
	}
	return m.exported, nil
}

// Reorder swaps two clusters' positions in the manager's ordering.
func (m *Manager) Reorder(i, j int) error {
	if i < 0 || j < 0 || i >= len(m.clusters) || j >= len(m.clusters) {
		return fmt.Errorf("region: reorder index out of range")
	}
	m.clusters[i], m.clusters[j] = m.clusters[j], m.clusters[i]
	return nil
}
