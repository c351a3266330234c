package filesystem

// WalkFunc is called once per object reached by Walk. path is the absolute
// slash-separated path of the object; returning a non-nil error stops the
// walk and surfaces that error.
type WalkFunc func(path string, entry Entry) error

// Walk enumerates every object reachable from the root of fsys breadth
// first. Identifiers already visited are skipped, so corrupt directory
// graphs with duplicate or cyclic linkage still terminate; the first path
// encountered for an identifier is the one reported.
//
// Damaged branches degrade instead of aborting: an entry whose descriptor
// cannot be fetched, a directory that cannot be opened, and a listing that
// ends in unreadable data are all skipped, and the walk continues with
// whatever else the image still yields.
func Walk(fsys FileSystem, fn WalkFunc) error {
	root, err := fsys.Root()
	if err != nil {
		return err
	}

	type pending struct {
		id   uint64
		path string
	}

	visited := make(map[uint64]struct{})
	queue := []pending{{id: root.Entry().ID, path: "/"}}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if _, ok := visited[next.id]; ok {
			continue
		}
		visited[next.id] = struct{}{}

		entry, err := fsys.EntryByID(next.id)
		if err != nil {
			continue
		}
		if err := fn(next.path, entry); err != nil {
			return err
		}
		if entry.Kind != KindDirectory {
			continue
		}
		dir, err := fsys.OpenDirectory(entry)
		if err != nil {
			continue
		}

		it := dir.List()
		for it.Next() {
			de := it.Entry()
			childPath := next.path + de.Name
			if next.path != "/" {
				childPath = next.path + "/" + de.Name
			}
			queue = append(queue, pending{id: de.ID, path: childPath})
		}
		// a listing error truncates this directory, not the walk
		_ = it.Err()
	}
	return nil
}
