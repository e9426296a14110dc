package models

// Job is one watch-and-run pairing: the directory tree to observe and the
// command to execute once changes under it settle.
type Job struct {
	Root    string
	Command string
}
