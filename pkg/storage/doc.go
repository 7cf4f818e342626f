// Package storage manages the local file tree of a data root.
//
// Layout:
//
//	{root}/{category}/{category}_{n}.jpg   committed assets of a Local category
//	{root}/{category}/{category}.json      committed record of a Local category
//	{root}/.staging/{category}/            per-run staging, never authoritative
//
// Files are written through a temporary sibling and renamed into place, so a
// partially written asset is never visible under its final name.
//
// Usage:
//
//	m, err := storage.NewManager("./data")
//	if err != nil {
//	    return err
//	}
//	err = storage.SaveFile(body, filepath.Join(m.StagingDir("food"), "food_1.jpg"))
package storage
