package session

// Cursor is an index into a list, kept inside [0, n-1]. Moves never wrap.
type Cursor struct {
	Index int
}

func (c Cursor) Up() Cursor {
	if c.Index > 0 {
		c.Index--
	}
	return c
}

func (c Cursor) Down(n int) Cursor {
	if c.Index < n-1 {
		c.Index++
	}
	return c.Clamp(n)
}

// Clamp pulls the index back inside a list of n items. An empty list pins
// it to 0.
func (c Cursor) Clamp(n int) Cursor {
	if c.Index > n-1 {
		c.Index = n - 1
	}
	if c.Index < 0 {
		c.Index = 0
	}
	return c
}
