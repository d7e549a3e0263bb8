// Package naming asks an external text generator for creative group names.
// The service is optional: every failure leaves default names in place.
package naming

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hrtoolkit/internal/logic"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	ErrNamingService = errors.New("naming service failed")
	ErrMalformed     = errors.New("malformed naming response")
)

// Result is either a list of names or the reason there is none.
type Result struct {
	Names []string
	Err   error
}

func Succeeded(names []string) Result { return Result{Names: names} }

func Failed(err error) Result {
	if !errors.Is(err, ErrNamingService) {
		err = fmt.Errorf("%w: %w", ErrNamingService, err)
	}
	return Result{Err: err}
}

func (r Result) OK() bool { return r.Err == nil }

// Namer suggests display names for count groups.
type Namer interface {
	Suggest(ctx context.Context, count int) Result
}

// ParseNames validates a generator reply, which must be a JSON array of
// strings. Markdown code fences around the array are tolerated.
func ParseNames(raw string) ([]string, error) {
	raw = stripFence(raw)
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: not JSON", ErrMalformed)
	}
	res := gjson.Parse(raw)
	if !res.IsArray() {
		return nil, fmt.Errorf("%w: expected array, got %s", ErrMalformed, res.Type)
	}
	items := res.Array()
	names := make([]string, 0, len(items))
	for i, v := range items {
		if v.Type != gjson.String {
			return nil, fmt.Errorf("%w: element %d is %s", ErrMalformed, i, v.Type)
		}
		names = append(names, strings.TrimSpace(v.String()))
	}
	return names, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// Apply renames groups from a successful result. A failed result is only
// logged and the groups come back unchanged.
func Apply(groups []logic.Group, res Result, log *zap.Logger) []logic.Group {
	if log == nil {
		log = zap.NewNop()
	}
	if !res.OK() {
		log.Warn("group naming failed, keeping default names", zap.Error(res.Err))
		return groups
	}
	if len(res.Names) < len(groups) {
		log.Debug("naming returned fewer names than groups",
			zap.Int("names", len(res.Names)), zap.Int("groups", len(groups)))
	}
	return logic.Rename(groups, res.Names)
}
