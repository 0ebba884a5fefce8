package conversation

// Animation is the reveal state of one reply. The cursor counts runes, so a
// multi-byte character is never shown half-written.
type Animation struct {
	target []rune
	cursor int
}

func NewAnimation(target string) *Animation {
	return &Animation{target: []rune(target)}
}

// Step reveals one more rune and returns the visible prefix. Once the cursor
// has reached the end it returns the full text with done set.
func (a *Animation) Step() (revealed string, done bool) {
	if a.cursor < len(a.target) {
		a.cursor++
	}
	return string(a.target[:a.cursor]), a.cursor == len(a.target)
}

func (a *Animation) Done() bool {
	return a.cursor == len(a.target)
}

func (a *Animation) Revealed() string {
	return string(a.target[:a.cursor])
}

func (a *Animation) Target() string {
	return string(a.target)
}

func (a *Animation) Cursor() int {
	return a.cursor
}

func (a *Animation) Len() int {
	return len(a.target)
}
