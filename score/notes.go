package score

import (
	"fmt"
	"strconv"
	"strings"
)

var pitchClass = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// ParseNote accepts a MIDI number ("69") or a name with octave where C4 is
// 60 ("A4", "c#3", "Bb2").
func ParseNote(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty note")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return noteInRange(n, s)
	}
	pc, ok := pitchClass[lower(s[0])]
	if !ok {
		return 0, fmt.Errorf("invalid note %q", s)
	}
	i := 1
	for ; i < len(s); i++ {
		if s[i] == '#' {
			pc++
		} else if s[i] == 'b' {
			pc--
		} else {
			break
		}
	}
	oct, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("invalid octave in note %q", s)
	}
	return noteInRange((oct+1)*12+pc, s)
}

func noteInRange(n int, s string) (int, error) {
	if n < 0 || n > 127 {
		return 0, fmt.Errorf("note %q out of range 0..127", s)
	}
	return n, nil
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
