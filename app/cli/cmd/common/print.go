package common

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"conveyor/pkg/api"
)

const (
	progressBarWidth       = 20
	progressBarChar        = "■"
	progressBarPlaceholder = "·"
)

var statusIconMap = map[api.Status]string{
	api.StatusPending:   "◷",
	api.StatusBlocked:   "◷",
	api.StatusReady:     "◷",
	api.StatusRunning:   "●",
	api.StatusSucceeded: "✔",
	api.StatusFailed:    "✖",
	api.StatusSkipped:   "○",
	api.StatusCancelled: "ǁ",
}

// PrintOptions defines print options.
type PrintOptions struct {
	// ShowOutputs includes stage outputs in the listing.
	ShowOutputs bool
}

// PrintRun prints the run state in the given writer.
func PrintRun(w io.Writer, res api.RunResult, opts PrintOptions) {
	fmt.Fprintln(w)

	// Header
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", res.Name)
	fmt.Fprintf(tw, "RunID:\t%s\n", res.RunID)
	fmt.Fprintf(tw, "Verdict:\t%s\n", res.Verdict)
	fmt.Fprintf(tw, "Started:\t%s\n", date(res.StartedAt))
	fmt.Fprintf(tw, "Finished:\t%s\n", date(res.EndedAt))
	fmt.Fprintf(tw, "Duration:\t%s\n", duration(res.StartedAt, res.EndedAt))
	fmt.Fprintf(tw, "Progress:\t%s\n", progression(res.Stages))
	tw.Flush()
	fmt.Fprintln(w)

	tw.Init(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tSTATUS\tDURATION\tDETAIL")
	for i, st := range res.Stages {
		prefix := "├"
		if i == len(res.Stages)-1 {
			prefix = "└"
		}
		printStage(tw, st, prefix, opts)
	}
	tw.Flush()
}

func printStage(w io.Writer, st api.StageState, prefix string, opts PrintOptions) {
	detail := ""
	if st.Error != nil {
		detail = fmt.Sprintf("%s: %s", st.Error.Kind, st.Error.Message)
	} else if opts.ShowOutputs && len(st.Outputs) > 0 {
		detail = fmt.Sprintf("%v", st.Outputs)
	}
	if st.Attempts > 1 {
		detail = fmt.Sprintf("%s (attempts: %d)", detail, st.Attempts)
	}
	fmt.Fprintf(w, "%s %s %s\t%s\t%s\t%s\n", prefix, statusIconMap[st.Status], st.ID, st.Status, duration(st.StartedAt, st.EndedAt), detail)
}

// progression returns a progress bar over terminal stages.
func progression(stages []api.StageState) string {
	total := len(stages)
	if total == 0 {
		return ""
	}
	finished := 0
	for _, st := range stages {
		if st.Status.Terminal() {
			finished++
		}
	}
	if finished == total {
		return fmt.Sprintf("%d/%d", finished, total)
	}
	return fmt.Sprintf("%s %d/%d", progressBar(finished, total), finished, total)
}

func progressBar(current, total int) string {
	value := (current * progressBarWidth) / total
	buf := bytes.NewBuffer(nil)
	for i := 0; i < progressBarWidth; i++ {
		if i < value {
			fmt.Fprint(buf, progressBarChar)
		} else {
			fmt.Fprint(buf, progressBarPlaceholder)
		}
	}
	return buf.String()
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2 Jan 2006 15:04:05.000")
}

func duration(start, end *time.Time) string {
	var d time.Duration
	if start == nil {
		return ""
	}
	if end == nil {
		d = time.Since(*start)
	} else {
		d = end.Sub(*start)
	}

	if d.Seconds() <= 60.0 {
		return fmt.Sprintf("%0.0fs", d.Seconds())
	} else if d.Minutes() <= 60.0 {
		m := int64(d.Minutes())
		s := math.Mod(d.Seconds(), 60)
		return fmt.Sprintf("%0.dm %0.0fs", m, s)
	}
	h := int64(d.Hours())
	m := int64(math.Mod(d.Minutes(), 60))
	s := math.Mod(d.Seconds(), 60)
	return fmt.Sprintf("%0.dh %0.dm %0.0fs", h, m, s)
}
