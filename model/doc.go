// Package model defines the boundary types shared by the digest, notary and
// controller layers.
//
// Records are owned by the remote notary contract. Nothing in this package
// persists them; they are values read through a call and rendered.
package model
