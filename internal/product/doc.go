// Package product defines the canonical product record, the raw source bag
// attached to it, and the collaborator interfaces shared by the acquisition
// pipeline and its adapters.
package product
