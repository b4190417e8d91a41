package cardtable

import (
	"io"
	"log/slog"
	"os"
)

// SetupLogger installs a JSON structured logger as the process default.
// Pass nil to log to stdout.
func SetupLogger(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}
