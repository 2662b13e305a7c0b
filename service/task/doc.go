// Package task provides built-in service task handlers that process
// definitions can reference by name: system/nop, system/log and the afs
// backed system/storage/upload and system/storage/download.
package task
