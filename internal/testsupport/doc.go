// Package testsupport provides fixtures shared by inkframe package tests:
// temp-directory configs and small solid-color source images.
package testsupport
