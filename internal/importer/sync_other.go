//go:build !unix

package importer

func syncDir(string) error { return nil }
