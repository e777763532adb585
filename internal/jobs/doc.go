// Package jobs provides a FIFO job serializer: at most one job runs at a
// time, jobs start in submission order, and each job's failure is isolated
// to its own caller.
package jobs
