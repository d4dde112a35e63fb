package builtin

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/studycoach/core"
	"github.com/hupe1980/studycoach/tool"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// TimeArgs are the arguments of the time_now tool.
type TimeArgs struct {
	Action     string  `json:"action" enum:"current,add_days,diff_days" description:"current: current time, add_days: shift today by days, diff_days: days until target_date"`
	Days       *int    `json:"days" description:"Number of days to add (add_days)"`
	TargetDate *string `json:"target_date" description:"Target date in YYYY-MM-DD format (diff_days)"`
}

// Time reports the current time and performs simple date arithmetic. now may
// be nil to use the wall clock.
func Time(now func() time.Time) tool.Tool {
	if now == nil {
		now = time.Now
	}
	return tool.NewTypedTool(TimeName,
		"Get the current time or perform date calculations.",
		func(tc *core.ToolContext, args TimeArgs) (any, error) {
			t := now()
			switch args.Action {
			case "current":
				return "Current time: " + t.Format(dateTimeLayout), nil
			case "add_days":
				if args.Days == nil {
					return nil, errors.New("the days parameter is required for add_days")
				}
				return fmt.Sprintf("%d days later: %s", *args.Days, t.AddDate(0, 0, *args.Days).Format(dateTimeLayout)), nil
			case "diff_days":
				if args.TargetDate == nil || *args.TargetDate == "" {
					return nil, errors.New("the target_date parameter is required for diff_days")
				}
				target, err := time.ParseInLocation(dateLayout, *args.TargetDate, t.Location())
				if err != nil {
					return nil, fmt.Errorf("target_date must use YYYY-MM-DD: %w", err)
				}
				today := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
				days := int(math.Round(target.Sub(today).Hours() / 24))
				return fmt.Sprintf("%d days until %s", days, *args.TargetDate), nil
			default:
				return nil, fmt.Errorf("unknown action: %s", args.Action)
			}
		})
}
