// divecoach analyzes exported Garmin freediving activities: it
// segments each dive into phases, classifies discipline and lung
// volume, reconciles AI labels with manual ones, and maintains the
// per-user baseline that calibrates future classifications.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/osamu-dazaai/garmin-freediving-coach/internal/dive"
	"github.com/osamu-dazaai/garmin-freediving-coach/internal/divedb"
	"github.com/osamu-dazaai/garmin-freediving-coach/internal/garmin"
	"github.com/osamu-dazaai/garmin-freediving-coach/internal/units"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: divecoach <command> [flags]

Commands:
  analyze    parse an exported activity, classify its dives and store them
  label      manually label a dive (manual labels always win)
  confirm    confirm a dive's AI labels as correct
  progress   show a user's baseline calibration progress
  list       list a user's stored dives
  recompute  rebuild a user's baseline from the label-event log
  migrate    run schema migrations

Run 'divecoach <command> -h' for command flags.
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = cmdAnalyze(os.Args[2:])
	case "label":
		err = cmdLabel(os.Args[2:])
	case "confirm":
		err = cmdConfirm(os.Args[2:])
	case "progress":
		err = cmdProgress(os.Args[2:])
	case "list":
		err = cmdList(os.Args[2:])
	case "recompute":
		err = cmdRecompute(os.Args[2:])
	case "migrate":
		err = cmdMigrate(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("divecoach %s: %v", os.Args[1], err)
	}
}

func openDB(path string) (*divedb.DiveDB, error) {
	db, err := divedb.NewDiveDB(path)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}
	return db, nil
}

func cmdAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	dbPath := fs.String("db", "dives.db", "path to sqlite db")
	activityPath := fs.String("activity", "", "exported Garmin activity JSON")
	userID := fs.String("user", "", "user the activity belongs to")
	tuningPath := fs.String("tuning", "", "optional tuning config JSON")
	depthUnits := fs.String("units", units.Metres, "depth units for display (m, ft)")
	fs.Parse(args)

	if *activityPath == "" || *userID == "" {
		return fmt.Errorf("both -activity and -user are required")
	}

	cfg, err := dive.LoadTuningConfig(*tuningPath)
	if err != nil {
		return err
	}
	export, err := garmin.LoadActivityFile(*activityPath)
	if err != nil {
		return err
	}
	parsed, err := garmin.SplitDives(export)
	if err != nil {
		return err
	}

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	baseline, err := db.GetBaseline(ctx, *userID)
	if err != nil {
		return err
	}
	worker := divedb.NewLabelWorker(db)

	segmenter := cfg.Segmenter()
	discClassifier := cfg.DisciplineClassifier()
	lungClassifier := cfg.LungVolumeClassifier()

	// First pass: segment and extract every dive so session-relative
	// HR references see the whole session.
	type analyzed struct {
		parsed   garmin.ParsedDive
		features dive.Features
		phases   []dive.Phase
	}
	var session []analyzed
	var sessionFeatures []dive.Features
	for _, pd := range parsed {
		phases, err := segmenter.Segment(pd.Trace)
		if err != nil {
			log.Printf("dive %d skipped: %v", pd.Number, err)
			continue
		}
		f := dive.Extract(pd.Trace, phases)
		session = append(session, analyzed{parsed: pd, features: f, phases: phases})
		sessionFeatures = append(sessionFeatures, f)
	}
	if len(session) == 0 {
		return fmt.Errorf("activity %s contains no analyzable dives", export.ActivityID)
	}

	fmt.Printf("Activity %s: %d dives (user %s, baseline %s)\n\n",
		export.ActivityID, len(session), *userID, baseline.State())

	for i, a := range session {
		f := a.features
		discResult := discClassifier.Classify(f, &baseline)
		sessionRef := dive.SessionHRReference(sessionFeatures, i)
		lungResult := lungClassifier.Classify(f, &baseline, sessionRef, dive.Discipline(discResult.Candidate))

		ai := dive.DiveClassification{Discipline: discResult, LungVolume: lungResult}
		final := dive.Reconcile(ai, dive.ManualLabel{})

		printDive(a.parsed.Number, f, a.phases, final, discResult, lungResult, *depthUnits)

		rec := divedb.DiveRecord{
			DiveID:          f.DiveID,
			UserID:          *userID,
			ActivityID:      export.ActivityID,
			StartedAt:       a.parsed.StartedAt,
			Features:        f,
			Final:           final,
			DisciplineModel: discResult.Model,
			LungVolumeModel: lungResult.Model,
		}
		if err := db.SaveDive(ctx, rec); err != nil {
			return err
		}

		if ev, ok := dive.NewLabelEvent(*userID, f, final, time.Now().UTC()); ok {
			if err := worker.Apply(ctx, ev); err != nil {
				return err
			}
			// Later dives in the session classify against the grown baseline.
			if baseline, err = db.GetBaseline(ctx, *userID); err != nil {
				return err
			}
			fmt.Printf("  -> auto-trusted label recorded (confirm or re-label with 'divecoach label')\n")
		}
		fmt.Println()
	}

	progress := baseline.CalibrationProgress()
	fmt.Printf("Calibration: %d/%d labeled dives (%.0f%%, %s)\n",
		progress.TotalLabeled, progress.Target, progress.ProgressPercent, progress.DataQuality)
	return nil
}

func printDive(number int, f dive.Features, phases []dive.Phase, final dive.FinalLabel, disc, lung dive.ClassificationResult, depthUnits string) {
	fmt.Printf("Dive %d: %s in %s\n", number,
		units.FormatDepth(f.MaxDepth, depthUnits), units.FormatDuration(f.TotalDuration))
	for _, p := range phases {
		fmt.Printf("  %-8s %5s  %s -> %s\n", p.Kind,
			units.FormatDuration(p.Duration),
			units.FormatDepth(p.StartDepth, depthUnits),
			units.FormatDepth(p.EndDepth, depthUnits))
	}
	fmt.Printf("  descent %s, ascent %s",
		units.FormatRate(f.AvgDescentRate, depthUnits),
		units.FormatRate(f.AvgAscentRate, depthUnits))
	if f.HasHR {
		fmt.Printf(", HR avg %.0f surface %.0f depth %.0f", f.AvgHR, f.SurfaceHR, f.DepthHR)
	}
	fmt.Println()

	fmt.Printf("  discipline: %s (%.0f%%)  lung volume: %s (%.0f%%)\n",
		final.Discipline, disc.Confidence, final.LungVolume, lung.Confidence)
	for _, ev := range disc.Evidence {
		fmt.Printf("    [%+6.1f] %-22s %s\n", ev.Score, ev.Signal, ev.Detail)
	}
	for _, ev := range lung.Evidence {
		fmt.Printf("    [%+6.1f] %-22s %s\n", ev.Score, ev.Signal, ev.Detail)
	}
}

func cmdLabel(args []string) error {
	fs := flag.NewFlagSet("label", flag.ExitOnError)
	dbPath := fs.String("db", "dives.db", "path to sqlite db")
	diveIDStr := fs.String("dive", "", "dive ID to label")
	discipline := fs.String("discipline", "", "manual discipline (FIM, CWT, CNF)")
	lungVolume := fs.String("lung", "", "manual lung volume (full, frc, exhale)")
	fs.Parse(args)

	if *diveIDStr == "" {
		return fmt.Errorf("-dive is required")
	}
	if *discipline == "" && *lungVolume == "" {
		return fmt.Errorf("at least one of -discipline or -lung is required")
	}
	diveID, err := uuid.Parse(*diveIDStr)
	if err != nil {
		return fmt.Errorf("bad dive ID: %w", err)
	}

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()

	rec, err := db.GetDive(ctx, diveID)
	if err != nil {
		return err
	}

	manual := dive.ManualLabel{
		Discipline: dive.Discipline(*discipline),
		LungVolume: dive.LungVolume(*lungVolume),
	}
	return applyManual(ctx, db, rec, manual)
}

func cmdConfirm(args []string) error {
	fs := flag.NewFlagSet("confirm", flag.ExitOnError)
	dbPath := fs.String("db", "dives.db", "path to sqlite db")
	diveIDStr := fs.String("dive", "", "dive ID to confirm")
	fs.Parse(args)

	if *diveIDStr == "" {
		return fmt.Errorf("-dive is required")
	}
	diveID, err := uuid.Parse(*diveIDStr)
	if err != nil {
		return fmt.Errorf("bad dive ID: %w", err)
	}

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := context.Background()

	rec, err := db.GetDive(ctx, diveID)
	if err != nil {
		return err
	}

	ai := dive.DiveClassification{
		Discipline: dive.ClassificationResult{Label: string(rec.Final.Discipline), Confidence: rec.Final.DisciplineConfidence},
		LungVolume: dive.ClassificationResult{Label: string(rec.Final.LungVolume), Confidence: rec.Final.LungVolumeConfidence},
	}
	manual := dive.Confirm(ai)
	if manual.Discipline == "" && manual.LungVolume == "" {
		return fmt.Errorf("dive %s has no confirmable labels", diveID)
	}
	return applyManual(ctx, db, rec, manual)
}

// applyManual reconciles a manual label against the stored one,
// updates the dive row, and routes the label event through the worker
// (replacing the dive's previous event if it had one).
func applyManual(ctx context.Context, db *divedb.DiveDB, rec *divedb.DiveRecord, manual dive.ManualLabel) error {
	ai := dive.DiveClassification{
		Discipline: dive.ClassificationResult{
			Label:      string(rec.Final.Discipline),
			Confidence: rec.Final.DisciplineConfidence,
		},
		LungVolume: dive.ClassificationResult{
			Label:      string(rec.Final.LungVolume),
			Confidence: rec.Final.LungVolumeConfidence,
		},
	}
	// Keep prior manual sources sticky when only one axis is labeled.
	if rec.Final.DisciplineSource == dive.SourceManual && manual.Discipline == "" {
		manual.Discipline = rec.Final.Discipline
	}
	if rec.Final.LungVolumeSource == dive.SourceManual && manual.LungVolume == "" {
		manual.LungVolume = rec.Final.LungVolume
	}

	final := dive.Reconcile(ai, manual)
	if err := db.UpdateFinalLabel(ctx, rec.DiveID, final); err != nil {
		return err
	}

	ev, ok := dive.NewLabelEvent(rec.UserID, rec.Features, final, time.Now().UTC())
	if !ok {
		fmt.Printf("Dive %s labeled %s/%s (not baseline-eligible)\n", rec.DiveID, final.Discipline, final.LungVolume)
		return nil
	}

	worker := divedb.NewLabelWorker(db)
	old, had, err := db.GetLabelEventForDive(ctx, rec.DiveID)
	if err != nil {
		return err
	}
	if had {
		err = worker.Relabel(ctx, *old, ev)
	} else {
		err = worker.Apply(ctx, ev)
	}
	if err != nil {
		return err
	}

	baseline, err := db.GetBaseline(ctx, rec.UserID)
	if err != nil {
		return err
	}
	fmt.Printf("Dive %s labeled %s/%s; baseline now %s (%d labeled dives)\n",
		rec.DiveID, final.Discipline, final.LungVolume, baseline.State(), baseline.CalibrationDives)
	return nil
}

func cmdProgress(args []string) error {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	dbPath := fs.String("db", "dives.db", "path to sqlite db")
	userID := fs.String("user", "", "user to report")
	fs.Parse(args)

	if *userID == "" {
		return fmt.Errorf("-user is required")
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	baseline, err := db.GetBaseline(context.Background(), *userID)
	if err != nil {
		return err
	}
	p := baseline.CalibrationProgress()
	fmt.Printf("User %s: %s\n", *userID, baseline.State())
	fmt.Printf("  labeled dives:  %d/%d (%.0f%%)\n", p.TotalLabeled, p.Target, p.ProgressPercent)
	fmt.Printf("  confidence:     %.0f/100\n", p.Confidence)
	fmt.Printf("  data quality:   %s\n", p.DataQuality)
	for _, cat := range []dive.HRCategory{dive.HRFullLung, dive.HRFRC, dive.HRExhale} {
		if s, ok := baseline.HeartRateStat(cat); ok {
			fmt.Printf("  hr[%s]: mean %.1f bpm, stdev %.1f (n=%d)\n", cat, s.Mean, s.StdDev(), s.Count)
		}
	}
	for _, d := range dive.Disciplines {
		if s, ok := baseline.DescentRateStat(d); ok {
			fmt.Printf("  rate[%s]: mean %.2f m/s, stdev %.2f (n=%d)\n", d, s.Mean, s.StdDev(), s.Count)
		}
	}
	return nil
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", "dives.db", "path to sqlite db")
	userID := fs.String("user", "", "user whose dives to list")
	limit := fs.Int("limit", 20, "max dives to list")
	depthUnits := fs.String("units", units.Metres, "depth units for display (m, ft)")
	fs.Parse(args)

	if *userID == "" {
		return fmt.Errorf("-user is required")
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	dives, err := db.ListUserDives(context.Background(), *userID, *limit)
	if err != nil {
		return err
	}
	if len(dives) == 0 {
		fmt.Printf("no dives stored for %s\n", *userID)
		return nil
	}
	for _, rec := range dives {
		fmt.Printf("%s  %s  %7s %5s  %s/%s (%s/%s)\n",
			rec.DiveID, rec.StartedAt.Format("2006-01-02 15:04"),
			units.FormatDepth(rec.Features.MaxDepth, *depthUnits),
			units.FormatDuration(rec.Features.TotalDuration),
			rec.Final.Discipline, rec.Final.LungVolume,
			rec.Final.DisciplineSource, rec.Final.LungVolumeSource)
	}
	return nil
}

func cmdRecompute(args []string) error {
	fs := flag.NewFlagSet("recompute", flag.ExitOnError)
	dbPath := fs.String("db", "dives.db", "path to sqlite db")
	userID := fs.String("user", "", "user whose baseline to rebuild")
	fs.Parse(args)

	if *userID == "" {
		return fmt.Errorf("-user is required")
	}
	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	worker := divedb.NewLabelWorker(db)
	baseline, err := worker.Recompute(context.Background(), *userID)
	if err != nil {
		return err
	}
	fmt.Printf("Baseline for %s rebuilt: %s, %d labeled dives\n",
		*userID, baseline.State(), baseline.CalibrationDives)
	return nil
}

func cmdMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", "dives.db", "path to sqlite db")
	dir := fs.String("dir", "db/migrations", "migrations directory")
	down := fs.Bool("down", false, "roll back the most recent migration")
	version := fs.Bool("version", false, "print the current migration version")
	fs.Parse(args)

	db, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch {
	case *version:
		v, dirty, err := db.MigrateVersion(*dir)
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty=%v)\n", v, dirty)
		return nil
	case *down:
		return db.MigrateDown(*dir)
	default:
		return db.MigrateUp(*dir)
	}
}
