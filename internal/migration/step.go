package migration

import (
	"fmt"
	"regexp"
	"time"

	"github.com/jwalitptl/hospital-core/internal/schema"
)

// KeyLayout is the timestamp layout of a step key.
const KeyLayout = "20060102150405"

var keyRe = regexp.MustCompile(`^\d{14}$`)

// Step is one entry of the ordered migration history. A nil Down is derived
// by inverting Up; steps with data ops must declare Down themselves.
type Step struct {
	Key  string
	Name string
	Up   []Op
	Down []Op
}

// Revert returns the ops that undo the step, in execution order.
func (s Step) Revert() ([]Op, error) {
	if s.Down != nil {
		return s.Down, nil
	}
	out := make([]Op, 0, len(s.Up))
	for i := len(s.Up) - 1; i >= 0; i-- {
		inv, err := Invert(s.Up[i])
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", s.Key, err)
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s Step) String() string { return s.Key + "_" + s.Name }

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Record is one row of the migration ledger.
type Record struct {
	Key       string    `db:"key"`
	Name      string    `db:"name"`
	AppliedAt time.Time `db:"applied_at"`
	Dirty     bool      `db:"dirty"`
	Error     string    `db:"error"`
}

func isDataOp(op Op) bool {
	switch op.(type) {
	case Exec, AssertEmpty, RequireRow:
		return true
	}
	return false
}

func isShapeOp(op Op) bool {
	switch op.(type) {
	case CreateTable, DropTable, AddColumn, DropColumn, AlterColumnType,
		CreateIndex, DropIndex, AddCheck, DropCheck, SetEnumVocabulary:
		return true
	}
	return false
}

// ValidateSteps checks the history is well formed: keys are timestamps in
// strictly increasing order, every step can be reverted, data steps document
// their revert, precision-losing type changes stand alone and enum changes
// are additive unless the removed member was deprecated. reg may be nil.
func ValidateSteps(steps []Step, reg *schema.Registry) error {
	prev := ""
	for _, s := range steps {
		if !keyRe.MatchString(s.Key) {
			return fmt.Errorf("step %q: key must be a 14-digit timestamp", s.Key)
		}
		if _, err := time.Parse(KeyLayout, s.Key); err != nil {
			return fmt.Errorf("step %s: invalid timestamp: %w", s.Key, err)
		}
		if s.Key <= prev {
			return fmt.Errorf("step %s: keys must be strictly increasing (after %s)", s.Key, prev)
		}
		prev = s.Key
		if s.Name == "" {
			return fmt.Errorf("step %s: missing name", s.Key)
		}
		if len(s.Up) == 0 {
			return fmt.Errorf("step %s: no up ops", s.Key)
		}

		shapeOps, narrowing := 0, false
		for _, op := range s.Up {
			if isDataOp(op) && s.Down == nil {
				return fmt.Errorf("step %s: %s has no inverse, declare Down explicitly", s.Key, op)
			}
			if isShapeOp(op) {
				shapeOps++
			}
			switch o := op.(type) {
			case AlterColumnType:
				if o.Narrows() {
					narrowing = true
				}
			case SetEnumVocabulary:
				var deprecated func(string) bool
				if reg != nil {
					if e, ok := reg.Enum(o.Enum); ok {
						deprecated = e.IsDeprecated
					}
				}
				if err := schema.CheckEvolution(o.Enum, o.From, o.To, deprecated); err != nil {
					return fmt.Errorf("step %s: %w", s.Key, err)
				}
			}
		}
		if narrowing && shapeOps > 1 {
			return fmt.Errorf("step %s: a precision-losing type change must be its own step", s.Key)
		}

		down, err := s.Revert()
		if err != nil {
			return err
		}
		if len(down) == 0 {
			return fmt.Errorf("step %s: empty Down, use Noop with a reason", s.Key)
		}
		for _, op := range down {
			if n, ok := op.(Noop); ok && n.Reason == "" {
				return fmt.Errorf("step %s: Noop must document why nothing is reverted", s.Key)
			}
		}
	}
	return nil
}
