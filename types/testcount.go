package types

// TestCount tracks, for every suite prefix, how many known tests exist under
// it. Counts are kept for the test path itself and for each of its ancestors
// up to the file root.
type TestCount struct {
	counts map[string]int
}

func NewTestCount() *TestCount {
	return &TestCount{counts: make(map[string]int)}
}

func (c *TestCount) AddTest(test TestPath) {
	c.update(test, 1)
}

func (c *TestCount) AddTests(tests []TestPath) {
	for _, test := range tests {
		c.AddTest(test)
	}
}

func (c *TestCount) RemoveTest(test TestPath) {
	c.update(test, -1)
}

// NumberOfTestsInSuite returns the count for suite, or 0 if nothing was ever
// added under it.
func (c *TestCount) NumberOfTestsInSuite(suite TestPath) int {
	return c.counts[suite.Key()]
}

func (c *TestCount) update(test TestPath, delta int) {
	for path, ok := test, true; ok; path, ok = path.SuitePath() {
		key := path.Key()
		n := c.counts[key] + delta
		if n == 0 {
			delete(c.counts, key)
		} else {
			c.counts[key] = n
		}
	}
}
