// Package cube validates the 54-sticker facelet strings submitted to the solver.
package cube

import (
	"errors"
	"fmt"
	"strings"
)

// Faces lists the face letters in facelet-string order.
const Faces = "URFDLB"

// Size is the number of stickers on a 3x3x3 cube.
const Size = 54

const stickersPerFace = 9

// Validation errors.
var (
	ErrLength  = errors.New("cube: facelet string must have 54 stickers")
	ErrSticker = errors.New("cube: unknown sticker")
	ErrCount   = errors.New("cube: each colour must appear exactly 9 times")
	ErrCenter  = errors.New("cube: centre stickers must be U,R,F,D,L,B in order")
)

// Facelets is a validated facelet string.
type Facelets string

// Solved is the facelet string of a solved cube.
var Solved = Facelets(strings.Repeat("U", 9) + strings.Repeat("R", 9) + strings.Repeat("F", 9) +
	strings.Repeat("D", 9) + strings.Repeat("L", 9) + strings.Repeat("B", 9))

// Parse upper-cases s and checks length, alphabet, colour counts and centres.
func Parse(s string) (Facelets, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != Size {
		return "", fmt.Errorf("%w: got %d", ErrLength, len(s))
	}
	counts := map[rune]int{}
	for i, r := range s {
		if !strings.ContainsRune(Faces, r) {
			return "", fmt.Errorf("%w %q at %d", ErrSticker, r, i)
		}
		counts[r]++
	}
	for _, f := range Faces {
		if counts[f] != stickersPerFace {
			return "", fmt.Errorf("%w: %c appears %d times", ErrCount, f, counts[f])
		}
	}
	for i, f := range Faces {
		if c := s[i*stickersPerFace+4]; rune(c) != f {
			return "", fmt.Errorf("%w: face %c has centre %c", ErrCenter, f, c)
		}
	}
	return Facelets(s), nil
}

// FromFaces joins nine-sticker rows given per face in U,R,F,D,L,B order.
func FromFaces(faces [6]string) (Facelets, error) {
	return Parse(strings.Join(faces[:], ""))
}

// Face returns the nine stickers of face f ('U', 'R', ...).
func (c Facelets) Face(f byte) string {
	i := strings.IndexByte(Faces, f)
	if i < 0 || len(c) != Size {
		return ""
	}
	return string(c[i*stickersPerFace : (i+1)*stickersPerFace])
}

// IsSolved reports whether every face shows a single colour.
func (c Facelets) IsSolved() bool { return c == Solved }

// String implements fmt.Stringer.
func (c Facelets) String() string { return string(c) }
