package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"gocv.io/x/gocv"

	"github.com/epsic-dls/autodc/autodcimg"
	"github.com/epsic-dls/autodc/cluster"
	"github.com/epsic-dls/autodc/config"
	"github.com/epsic-dls/autodc/drift"
	"github.com/epsic-dls/autodc/emission"
	"github.com/epsic-dls/autodc/focus"
	"github.com/epsic-dls/autodc/hardware"
	"github.com/epsic-dls/autodc/preprocess"
	"github.com/epsic-dls/autodc/region"
	"github.com/epsic-dls/autodc/scheduler"
	"github.com/epsic-dls/autodc/search"
	"github.com/epsic-dls/autodc/storage"
)

// runScan loads a survey image as the canvas completed regions are
// marked on and acquires every currently-exported scan region, writing
// each region to its own HDF5 file under outURI, with drift, focus and
// emission corrections interleaved between scans on the cadence the
// configuration file sets.
func runScan(cfg *config.Config, surveyPath, outURI string, mgr *region.Manager, dev hardware.Microscope) error {
	regions, err := mgr.Export()
	if err != nil {
		return fmt.Errorf("autodc: export regions: %w", err)
	}
	log.Printf("scanning %d regions\n", len(regions))

	survey, err := autodcimg.LoadFile(surveyPath)
	if err != nil {
		return fmt.Errorf("autodc: load survey image: %w", err)
	}

	w, err := storage.Create(outURI)
	if err != nil {
		return err
	}
	defer w.Close()

	hw := hardware.NewHandle(dev)

	corr := scheduler.Corrections{}
	if len(regions) > 0 {
		reference, err := hw.Scan(regions[0])
		if err != nil {
			return fmt.Errorf("autodc: drift reference scan: %w", err)
		}
		driftState, err := drift.NewState(reference, cfg.DriftConfig())
		if err != nil {
			return fmt.Errorf("autodc: drift init: %w", err)
		}
		corr.Drift = driftState

		lens, err := hw.LensValue()
		if err != nil {
			return fmt.Errorf("autodc: read lens value: %w", err)
		}
		corr.Focus = focus.NewState(lens, cfg.FocusConfig())

		// The monitor is built with a baseline of 0 and is never
		// started here, so it takes no emission readings during the
		// run.
		corr.Emission = emission.NewMonitor(0, cfg.EmissionConfig())
	}

	sched := scheduler.New(hw, w, corr, scheduler.Config{
		Workers:   cfg.SchedulerWorkers,
		DwellTime: cfg.InitDwell,
	}, survey)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for res := range sched.Run(ctx, regions) {
		if res.Err != nil {
			log.Println("region failed:", res.Region, res.Err)
		}
	}
	return nil
}

// runCluster loads a binary survey-derived image and extracts clusters.
func runCluster(cfg *config.Config, binaryPath string) ([]cluster.Cluster, error) {
	img, err := autodcimg.LoadFile(binaryPath)
	if err != nil {
		return nil, err
	}
	return cluster.Extract(img, cfg.ClusterEps, cfg.ClusterMinSamples, cfg.ClusterMetric())
}

func main() {
	app := &cli.App{
		Name:  "autodc",
		Usage: "automated 4D-STEM survey, clustering and acquisition engine",
		Commands: []*cli.Command{
			{
				Name:  "cluster",
				Usage: "extract clusters from a thresholded survey image",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Required: true},
					&cli.StringFlag{Name: "binary-image", Required: true},
				},
				Action: func(cCtx *cli.Context) error {
					cfg, err := config.Load(cCtx.String("config"))
					if err != nil {
						return err
					}
					clusters, err := runCluster(cfg, cCtx.String("binary-image"))
					if err != nil {
						return err
					}
					log.Printf("found %d clusters\n", len(clusters))
					return nil
				},
			},
			{
				Name:  "preprocess",
				Usage: "run a preprocessing pipeline over a survey image and write the binary mask",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "image", Required: true},
					&cli.StringFlag{Name: "out", Required: true},
				},
				Action: func(cCtx *cli.Context) error {
					img, err := autodcimg.LoadFile(cCtx.String("image"))
					if err != nil {
						return err
					}
					pipeline := preprocess.New(
						preprocess.GaussianBlur{H: 5, W: 5, SigmaX: 1, SigmaY: 1},
						preprocess.Threshold{Minima: 0, Maxima: 128},
					)
					out, err := pipeline.RequireBinary(img)
					if err != nil {
						return err
					}
					mat, err := out.ToMat()
					if err != nil {
						return err
					}
					defer mat.Close()
					if !gocv.IMWrite(cCtx.String("out"), mat) {
						return fmt.Errorf("autodc: could not write binary mask to %q", cCtx.String("out"))
					}
					log.Println("wrote binary mask to", cCtx.String("out"))
					return nil
				},
			},
			{
				Name:  "search",
				Usage: "trawl a survey directory for images and configuration files",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "uri", Required: true},
					&cli.StringFlag{Name: "config-uri"},
				},
				Action: func(cCtx *cli.Context) error {
					images, err := search.FindSurveyImages(cCtx.String("uri"), cCtx.String("config-uri"))
					if err != nil {
						return err
					}
					for _, i := range images {
						fmt.Println(i)
					}
					return nil
				},
			},
			{
				Name:  "mark",
				Usage: "mark the cluster enclosing a point for acquisition",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Required: true},
					&cli.IntFlag{Name: "x", Required: true},
					&cli.IntFlag{Name: "y", Required: true},
				},
				Action: func(cCtx *cli.Context) error {
					cfg, err := config.Load(cCtx.String("config"))
					if err != nil {
						return err
					}
					mgr := region.NewManager(cfg.SurveySize)
					directions := region.AllOverlaps
					if err := mgr.Mark(cCtx.Int("x"), cCtx.Int("y"), cfg.GridPitch, cfg.GridOverlapFraction(), directions, cfg.SurveyResolution()); err != nil {
						return err
					}
					log.Println("marked cluster at", cCtx.Int("x"), cCtx.Int("y"))
					return nil
				},
			},
			{
				Name:  "tighten",
				Usage: "tighten every marked cluster's grid against its mask",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Required: true},
				},
				Action: func(cCtx *cli.Context) error {
					cfg, err := config.Load(cCtx.String("config"))
					if err != nil {
						return err
					}
					mgr := region.NewManager(cfg.SurveySize)
					_, errs := mgr.TightenAll(cfg.GridMatchFraction())
					for err := range errs {
						if err != nil {
							return err
						}
					}
					return nil
				},
			},
			{
				Name:  "scan",
				Usage: "alias of run: execute an acquisition run against the exported scan regions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Required: true},
					&cli.StringFlag{Name: "survey-image", Required: true},
					&cli.StringFlag{Name: "out", Required: true},
				},
				Action: func(cCtx *cli.Context) error {
					cfg, err := config.Load(cCtx.String("config"))
					if err != nil {
						return err
					}
					mgr := region.NewManager(cfg.SurveySize)
					dev := &hardware.MockMicroscope{}
					return runScan(cfg, cCtx.String("survey-image"), cCtx.String("out"), mgr, dev)
				},
			},
			{
				Name:  "run",
				Usage: "execute an acquisition run against the exported scan regions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Required: true},
					&cli.StringFlag{Name: "survey-image", Required: true},
					&cli.StringFlag{Name: "out", Required: true},
				},
				Action: func(cCtx *cli.Context) error {
					cfg, err := config.Load(cCtx.String("config"))
					if err != nil {
						return err
					}
					mgr := region.NewManager(cfg.SurveySize)
					dev := &hardware.MockMicroscope{}
					return runScan(cfg, cCtx.String("survey-image"), cCtx.String("out"), mgr, dev)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
