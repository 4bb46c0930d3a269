// Package pipeline runs the per-identifier acquisition cascade and fans it
// out over batches with a bounded number of in-flight pipelines.
package pipeline
