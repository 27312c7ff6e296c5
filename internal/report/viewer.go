package report

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"garden-bridge/internal/livecache"
	"garden-bridge/internal/store"
)

// View is one report the viewer can print.
type View string

const (
	ViewSensor   View = "sensor"
	ViewState    View = "state"
	ViewOnline   View = "online"
	ViewCommands View = "commands"
	ViewStats    View = "stats"
	ViewAll      View = "all"
	ViewLive     View = "live"
)

// DefaultLimit is the row count a view uses when none is given.
func (v View) DefaultLimit() int {
	switch v {
	case ViewOnline:
		return 10
	case ViewSensor, ViewState, ViewCommands:
		return 20
	default:
		return 0
	}
}

// Row counts used by the combined view.
const (
	allSensorLimit   = 10
	allStateLimit    = 10
	allOnlineLimit   = 5
	allCommandsLimit = 10
)

// LiveStreams are the cache entries the live view looks up, in print order.
var LiveStreams = []string{"sensor", "state", "online", "command"}

// ErrUsage is returned by ParseArgs for arguments it does not understand.
var ErrUsage = errors.New("usage: db-viewer [sensor|state|online|commands|stats|all|live] [limit]")

// ParseArgs reads the command line (without the program name). No arguments
// means the interactive menu and returns an empty View.
func ParseArgs(args []string) (View, int, error) {
	if len(args) == 0 {
		return "", 0, nil
	}
	v := View(strings.ToLower(args[0]))
	switch v {
	case ViewSensor, ViewState, ViewOnline, ViewCommands, ViewStats, ViewAll, ViewLive:
	default:
		return "", 0, fmt.Errorf("%w: unknown view %q", ErrUsage, args[0])
	}

	limit := v.DefaultLimit()
	if len(args) > 1 {
		n, err := parseLimit(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		limit = n
	}
	return v, limit, nil
}

func parseLimit(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid record count %q", s)
	}
	return n, nil
}

// Viewer runs views against an event log.
type Viewer struct {
	src  store.Reader
	live *livecache.Cache
	out  *Renderer
	w    io.Writer
	now  func() time.Time
}

// NewViewer prints to w. live may be nil; the live view then reports every
// stream as missing.
func NewViewer(src store.Reader, live *livecache.Cache, w io.Writer) *Viewer {
	return &Viewer{
		src:  src,
		live: live,
		out:  NewRenderer(w),
		w:    w,
		now:  time.Now,
	}
}

// Run prints one view. A zero limit means the view's default.
func (v *Viewer) Run(ctx context.Context, view View, limit int) error {
	if limit <= 0 {
		limit = view.DefaultLimit()
	}
	switch view {
	case ViewSensor:
		rows, err := v.src.LatestSensorReadings(ctx, limit)
		if err != nil {
			return err
		}
		v.out.SensorRows(limit, rows)
	case ViewState:
		rows, err := v.src.LatestDeviceStates(ctx, limit)
		if err != nil {
			return err
		}
		v.out.StateRows(limit, rows)
	case ViewOnline:
		rows, err := v.src.LatestOnlineEvents(ctx, limit)
		if err != nil {
			return err
		}
		v.out.OnlineRows(limit, rows)
	case ViewCommands:
		rows, err := v.src.LatestCommands(ctx, limit)
		if err != nil {
			return err
		}
		v.out.CommandRows(limit, rows)
	case ViewStats:
		st, err := v.src.Stats(ctx, v.now())
		if err != nil {
			return err
		}
		v.out.Stats(st)
	case ViewAll:
		return v.all(ctx)
	case ViewLive:
		return v.liveView(ctx)
	default:
		return fmt.Errorf("%w: unknown view %q", ErrUsage, view)
	}
	return nil
}

func (v *Viewer) all(ctx context.Context) error {
	steps := []struct {
		view  View
		limit int
	}{
		{ViewStats, 0},
		{ViewSensor, allSensorLimit},
		{ViewState, allStateLimit},
		{ViewOnline, allOnlineLimit},
		{ViewCommands, allCommandsLimit},
	}
	for _, s := range steps {
		if err := v.Run(ctx, s.view, s.limit); err != nil {
			return err
		}
	}
	return nil
}

func (v *Viewer) liveView(ctx context.Context) error {
	var (
		entries []livecache.Entry
		missing []string
	)
	for _, stream := range LiveStreams {
		e, err := v.live.Get(ctx, stream)
		switch {
		case errors.Is(err, livecache.ErrMiss):
			missing = append(missing, stream)
		case err != nil:
			return err
		default:
			entries = append(entries, e)
		}
	}
	v.out.Live(entries, missing)
	return nil
}

// Menu runs the interactive loop until the user picks 0 or in is exhausted.
// View failures are printed and the loop goes on.
func (v *Viewer) Menu(ctx context.Context, in io.Reader) {
	sc := bufio.NewScanner(in)
	for {
		v.printMenu()
		choice, ok := v.prompt(sc, "\nSelect option (0-6): ")
		if !ok || choice == "0" {
			fmt.Fprintln(v.w, "\n👋 Goodbye!")
			return
		}

		var (
			view  View
			limit int
		)
		switch choice {
		case "1":
			view = ViewSensor
		case "2":
			view = ViewState
		case "3":
			view = ViewOnline
		case "4":
			view = ViewCommands
		case "5":
			view = ViewStats
		case "6":
			view = ViewAll
		default:
			fmt.Fprintln(v.w, "❌ Invalid option!")
			continue
		}

		if def := view.DefaultLimit(); def > 0 {
			if limit, ok = v.promptLimit(sc, def); !ok {
				fmt.Fprintln(v.w, "\n👋 Goodbye!")
				return
			}
		}
		if err := v.Run(ctx, view, limit); err != nil {
			fmt.Fprintf(v.w, "❌ Error: %v\n", err)
		}
	}
}

func (v *Viewer) printMenu() {
	fmt.Fprintf(v.w, "\n%s\n  📊 IoT DATABASE VIEWER (Garden Version)\n%s\n", strings.Repeat("=", ruleWidth), strings.Repeat("=", ruleWidth))
	fmt.Fprintln(v.w, "\n[1] View Sensor Data")
	fmt.Fprintln(v.w, "[2] View Device State")
	fmt.Fprintln(v.w, "[3] View Online Status")
	fmt.Fprintln(v.w, "[4] View Command History")
	fmt.Fprintln(v.w, "[5] View Statistics")
	fmt.Fprintln(v.w, "[6] View All")
	fmt.Fprintln(v.w, "[0] Exit")
}

func (v *Viewer) prompt(sc *bufio.Scanner, text string) (string, bool) {
	fmt.Fprint(v.w, text)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

// promptLimit asks for a record count until it gets a positive number or an
// empty line (the default).
func (v *Viewer) promptLimit(sc *bufio.Scanner, def int) (int, bool) {
	for {
		s, ok := v.prompt(sc, fmt.Sprintf("How many records? (default %d): ", def))
		if !ok {
			return 0, false
		}
		if s == "" {
			return def, true
		}
		n, err := parseLimit(s)
		if err == nil {
			return n, true
		}
		fmt.Fprintf(v.w, "❌ %v\n", err)
	}
}
