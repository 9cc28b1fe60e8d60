package history

import (
	"errors"
	"fmt"
)

// ErrInconsistent is returned when an update cannot be undone because the
// content does not match what the update says it changed.
var ErrInconsistent = errors.New("update inconsistent with content")

// TextReverser undoes text operations. Components are undone last to first:
// an insert is removed after checking the inserted text is present at its
// position, a delete is put back.
type TextReverser struct{}

// Reverse returns the content as it was before u was applied.
func (TextReverser) Reverse(content string, u Update) (string, error) {
	text := []rune(content)
	for i := len(u.Op) - 1; i >= 0; i-- {
		c := u.Op[i]
		switch {
		case c.IsInsert():
			if err := checkPos(i, c.Pos, len(text)); err != nil {
				return "", err
			}
			ins := []rune(c.Insert)
			end := c.Pos + len(ins)
			if end > len(text) || string(text[c.Pos:end]) != c.Insert {
				return "", fmt.Errorf("%w: component %d expected %q at %d",
					ErrInconsistent, i, c.Insert, c.Pos)
			}
			text = append(text[:c.Pos], text[end:]...)
		case c.IsDelete():
			if err := checkPos(i, c.Pos, len(text)); err != nil {
				return "", err
			}
			del := []rune(c.Delete)
			out := make([]rune, 0, len(text)+len(del))
			out = append(out, text[:c.Pos]...)
			out = append(out, del...)
			text = append(out, text[c.Pos:]...)
		}
	}
	return string(text), nil
}

// checkPos rejects positions outside [0, n]. Components that neither insert
// nor delete are never checked.
func checkPos(i, pos, n int) error {
	if pos < 0 || pos > n {
		return fmt.Errorf("%w: component %d position %d outside content of length %d",
			ErrInconsistent, i, pos, n)
	}
	return nil
}
