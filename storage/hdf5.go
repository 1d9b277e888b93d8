// Package storage persists completed scan regions to the on-disk HDF5
// container format the acquisition run uses as its output, one file per
// region, plus the Merlin 4D-STEM detector's accompanying metadata group.
package storage

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/hdf5"

	"github.com/epsic-dls/autodc/autodcimg"
	"github.com/epsic-dls/autodc/region"
)

// Stage names an optional pipeline snapshot a region's output file may
// carry alongside its captured square, selected by a Stages bitmask.
type Stage uint8

const (
	StageSurveyScan Stage = 1 << iota
	StageThresholdedImage
	StageClustersFound
	StageGridMarker
)

var stageDatasetName = map[Stage]string{
	StageSurveyScan:       "Survey Scan",
	StageThresholdedImage: "Thresholded Image",
	StageClustersFound:    "Clusters Found",
	StageGridMarker:       "Grid Marker",
}

// Stages carries the actual pipeline-stage images to attach to one
// region's output file, keyed by which bit they satisfy.
type Stages map[Stage]autodcimg.Image

// MerlinMetadata is the acquisition-parameter group attached to a
// region's output file when the scan was routed through an external
// Merlin 4D-STEM camera server; raw frame data stays on the Merlin side.
type MerlinMetadata struct {
	DwellTimeMicroseconds float64
	ScanPixels            int
	BitDepth              int
}

// stamp formats t as the local-time filename stamp a region's output
// file is named after: YYYYMMDD_HHMMSS.
func stamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// WriteRegion creates dir/{stamp}.hdf5 and writes one region's complete
// output: the mandatory "Captured Square" dataset and "Co-ordinates
// (cartesian)" attribute group, any requested optional stage datasets,
// and an Merlin metadata group when merlin is non-nil.
func WriteRegion(dir string, t time.Time, img autodcimg.Image, tl, br image.Point, stages Stages, merlin *MerlinMetadata) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: create output dir: %w", err)
	}
	path := filepath.Join(dir, stamp(t)+".hdf5")

	file, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return "", fmt.Errorf("storage: create %s: %w", path, err)
	}
	defer file.Close()

	if err := writeImageDataset(file, "Captured Square", img); err != nil {
		return "", err
	}

	coords, err := file.CreateGroup("Co-ordinates (cartesian)")
	if err != nil {
		return "", fmt.Errorf("storage: create coordinates group: %w", err)
	}
	defer coords.Close()
	if err := writePointAttr(coords, "top left", tl); err != nil {
		return "", err
	}
	if err := writePointAttr(coords, "bottom right", br); err != nil {
		return "", err
	}

	for bit, name := range stageDatasetName {
		stageImg, ok := stages[bit]
		if !ok {
			continue
		}
		if err := writeImageDataset(file, name, stageImg); err != nil {
			return "", err
		}
	}

	if merlin != nil {
		if err := writeMerlinGroup(file, *merlin); err != nil {
			return "", err
		}
	}

	return path, nil
}

func writeImageDataset(file *hdf5.File, name string, img autodcimg.Image) error {
	dims := []uint{uint(img.Height), uint(img.Width)}
	if img.Chan == autodcimg.RGB {
		dims = append(dims, 3)
	}
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return fmt.Errorf("storage: dataspace %s: %w", name, err)
	}
	defer space.Close()

	dtype, err := hdf5.NewDatatypeFromValue(uint8(0))
	if err != nil {
		return fmt.Errorf("storage: datatype %s: %w", name, err)
	}

	dset, err := file.CreateDataset(name, dtype, space)
	if err != nil {
		return fmt.Errorf("storage: create dataset %s: %w", name, err)
	}
	defer dset.Close()

	if err := dset.Write(&img.Data); err != nil {
		return fmt.Errorf("storage: write dataset %s: %w", name, err)
	}
	return nil
}

func writePointAttr(group *hdf5.Group, name string, p image.Point) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{2}, nil)
	if err != nil {
		return fmt.Errorf("storage: attribute dataspace %s: %w", name, err)
	}
	defer space.Close()

	dtype, err := hdf5.NewDatatypeFromValue(int32(0))
	if err != nil {
		return fmt.Errorf("storage: attribute datatype %s: %w", name, err)
	}

	attr, err := group.CreateAttribute(name, dtype, space)
	if err != nil {
		return fmt.Errorf("storage: create attribute %s: %w", name, err)
	}
	defer attr.Close()

	vals := [2]int32{int32(p.X), int32(p.Y)}
	if err := attr.Write(&vals, dtype); err != nil {
		return fmt.Errorf("storage: write attribute %s: %w", name, err)
	}
	return nil
}

func writeMerlinGroup(file *hdf5.File, m MerlinMetadata) error {
	group, err := file.CreateGroup("Merlin")
	if err != nil {
		return fmt.Errorf("storage: create merlin group: %w", err)
	}
	defer group.Close()

	if err := writeGroupFloatAttr(group, "set_dwell_time(usec)", m.DwellTimeMicroseconds); err != nil {
		return err
	}
	if err := writeGroupIntAttr(group, "set_scan_px", m.ScanPixels); err != nil {
		return err
	}
	return writeGroupIntAttr(group, "set_bit_depth", m.BitDepth)
}

func writeGroupIntAttr(group *hdf5.Group, name string, v int) error {
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer space.Close()
	dtype, err := hdf5.NewDatatypeFromValue(int32(0))
	if err != nil {
		return err
	}
	attr, err := group.CreateAttribute(name, dtype, space)
	if err != nil {
		return err
	}
	defer attr.Close()
	val := int32(v)
	return attr.Write(&val, dtype)
}

func writeGroupFloatAttr(group *hdf5.Group, name string, v float64) error {
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return err
	}
	defer space.Close()
	dtype, err := hdf5.NewDatatypeFromValue(float64(0))
	if err != nil {
		return err
	}
	attr, err := group.CreateAttribute(name, dtype, space)
	if err != nil {
		return err
	}
	defer attr.Close()
	return attr.Write(&v, dtype)
}

// Writer adapts the one-file-per-region WriteRegion function to the
// scheduler.Sink interface, which expects a single long-lived handle a
// run opens once and closes once. Writer itself holds no file handle:
// each region gets its own file, so Close is a no-op kept for interface
// symmetry with callers that defer it.
type Writer struct {
	mu  sync.Mutex
	dir string
}

// Create prepares dir as the destination for a run's region output
// files, creating it if necessary.
func Create(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create output dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Close is a no-op: every region was already flushed to its own file by
// WriteRegion.
func (w *Writer) Close() error { return nil }

// WriteRegion writes one region's output file under the Writer's
// directory, named by the current local time. When a file with that
// stamp already exists (two regions finishing within one second), the
// stamp is moved forward a second at a time until it is unused, so an
// earlier region's file is never overwritten.
func (w *Writer) WriteRegion(r region.ScanRegion, img autodcimg.Image, stages Stages, merlin *MerlinMetadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	tl := image.Pt(r.Left, r.Top)
	br := image.Pt(r.Right, r.Bottom)
	t := time.Now()
	for {
		if _, err := os.Stat(filepath.Join(w.dir, stamp(t)+".hdf5")); err != nil {
			break
		}
		t = t.Add(time.Second)
	}
	_, err := WriteRegion(w.dir, t, img, tl, br, stages, merlin)
	return err
}
