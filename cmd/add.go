package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmreid/daybook/internal/dateparse"
	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/output"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a new entry",
}

var (
	workoutActivity string
	workoutDuration int
	workoutDistance float64
	workoutNotes    string
	workoutWhen     string
)

var addWorkoutCmd = &cobra.Command{
	Use:   "workout",
	Short: "Log a workout",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		performedAt, err := dateparse.Parse(workoutWhen)
		if err != nil {
			return err
		}
		w := &models.Workout{
			Activity:    workoutActivity,
			DurationMin: workoutDuration,
			DistanceKM:  workoutDistance,
			Notes:       workoutNotes,
			PerformedAt: performedAt,
		}
		if err := rt.app.Create(cmd.Context(), w); err != nil {
			return err
		}
		output.Success("Logged workout %s", w.ID)
		syncAfterMutation(rt, models.CollectionWorkouts)
		return nil
	},
}

var (
	metricName  string
	metricValue float64
	metricUnit  string
	metricWhen  string
)

var addMetricCmd = &cobra.Command{
	Use:   "metric",
	Short: "Record a measurement",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		recordedAt, err := dateparse.Parse(metricWhen)
		if err != nil {
			return err
		}
		m := &models.Metric{
			Name:       metricName,
			Value:      metricValue,
			Unit:       metricUnit,
			RecordedAt: recordedAt,
		}
		if err := rt.app.Create(cmd.Context(), m); err != nil {
			return err
		}
		output.Success("Recorded %s = %v%s (%s)", m.Name, m.Value, m.Unit, m.ID)
		syncAfterMutation(rt, models.CollectionMetrics)
		return nil
	},
}

var (
	noteTitle string
	noteBody  string
)

var addNoteCmd = &cobra.Command{
	Use:   "note",
	Short: "Write a note",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		n := &models.Note{Title: noteTitle, Body: noteBody}
		if err := rt.app.Create(cmd.Context(), n); err != nil {
			return err
		}
		output.Success("Saved note %s", n.ID)
		syncAfterMutation(rt, models.CollectionNotes)
		return nil
	},
}

func init() {
	addWorkoutCmd.Flags().StringVar(&workoutActivity, "activity", "", "activity name (required)")
	addWorkoutCmd.Flags().IntVar(&workoutDuration, "duration", 0, "duration in minutes")
	addWorkoutCmd.Flags().Float64Var(&workoutDistance, "distance", 0, "distance in km")
	addWorkoutCmd.Flags().StringVar(&workoutNotes, "notes", "", "free-form notes")
	addWorkoutCmd.Flags().StringVar(&workoutWhen, "when", "now", "when it happened (2026-03-01, yesterday, -3d, monday)")
	addWorkoutCmd.MarkFlagRequired("activity")

	addMetricCmd.Flags().StringVar(&metricName, "name", "", "metric name (required)")
	addMetricCmd.Flags().Float64Var(&metricValue, "value", 0, "measured value")
	addMetricCmd.Flags().StringVar(&metricUnit, "unit", "", "unit of measure")
	addMetricCmd.Flags().StringVar(&metricWhen, "when", "now", "when it was measured (2026-03-01, yesterday, -3d)")
	addMetricCmd.MarkFlagRequired("name")

	addNoteCmd.Flags().StringVar(&noteTitle, "title", "", "note title (required)")
	addNoteCmd.Flags().StringVar(&noteBody, "body", "", "note body")
	addNoteCmd.MarkFlagRequired("title")

	addCmd.AddCommand(addWorkoutCmd, addMetricCmd, addNoteCmd)
	rootCmd.AddCommand(addCmd)
}
