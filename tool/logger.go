package tool

import (
	"time"

	"github.com/charmbracelet/log"
)

var DefaultLogger = log.Default()

// InitLogger applies the process-wide logger settings. Called once at
// startup before anything logs.
func InitLogger() {
	DefaultLogger.SetTimeFormat(time.DateTime)
	DefaultLogger.SetReportCaller(true)
}
