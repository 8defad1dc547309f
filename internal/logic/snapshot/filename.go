package snapshot

import (
	"fmt"
	"regexp"
	"time"
)

// FilenamePattern matches every name produced by Filename.
var FilenamePattern = regexp.MustCompile(`^screenshot_\d{8}_\d{6}_\d{6}\.jpeg$`)

// Filename derives the capture file name from t at microsecond resolution:
// screenshot_YYYYMMDD_HHMMSS_uuuuuu.jpeg. All fields are fixed width, so names
// sort in timestamp order. Two requests within the same microsecond collide.
func Filename(t time.Time) string {
	return fmt.Sprintf("screenshot_%s_%06d.jpeg", t.Format("20060102_150405"), t.Nanosecond()/int(time.Microsecond))
}
