package git

import (
	"bytes"
	"io"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// flattenTree maps every blob in a tree by its full path.
func flattenTree(tree *object.Tree, prefix string, entries map[string]object.TreeEntry) error {
	for _, entry := range tree.Entries {
		path := entry.Name
		if prefix != "" {
			path = prefix + "/" + entry.Name
		}
		if entry.Mode == filemode.Dir {
			subtree, err := tree.Tree(entry.Name)
			if err != nil {
				return repoErr("read subtree "+path, err)
			}
			if err := flattenTree(subtree, path, entries); err != nil {
				return err
			}
			continue
		}
		entries[path] = object.TreeEntry{Name: path, Mode: entry.Mode, Hash: entry.Hash}
	}
	return nil
}

func commitTreeEntries(commit *object.Commit) (map[string]object.TreeEntry, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, repoErr("read commit tree", err)
	}
	entries := make(map[string]object.TreeEntry)
	if err := flattenTree(tree, "", entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// fileConflict is one path the three-way merge could not reconcile.
// content carries the marker text to materialize in the working tree; nil
// means the path is left as checked out (binary conflicts).
type fileConflict struct {
	path    string
	content []byte
}

// mergeTreeEntries computes the three-way merge of flattened trees. Entries
// changed on one side only are taken; entries changed identically collapse;
// divergent text files go through line merging; everything else conflicts.
func (s *Service) mergeTreeEntries(base, ours, theirs map[string]object.TreeEntry, oursLabel, theirsLabel string) (map[string]object.TreeEntry, []fileConflict, error) {
	paths := make(map[string]struct{}, len(base)+len(ours)+len(theirs))
	for p := range base {
		paths[p] = struct{}{}
	}
	for p := range ours {
		paths[p] = struct{}{}
	}
	for p := range theirs {
		paths[p] = struct{}{}
	}

	merged := make(map[string]object.TreeEntry, len(ours))
	var conflicts []fileConflict
	for path := range paths {
		b, bok := base[path]
		o, ook := ours[path]
		t, tok := theirs[path]

		switch {
		case sameEntry(o, ook, t, tok):
			if ook {
				merged[path] = o
			}
		case sameEntry(b, bok, o, ook):
			// only theirs changed
			if tok {
				merged[path] = t
			}
		case sameEntry(b, bok, t, tok):
			// only ours changed
			if ook {
				merged[path] = o
			}
		case !ook || !tok:
			// modified on one side, deleted on the other
			conflict, err := s.modifyDeleteConflict(path, o, ook, t, tok, oursLabel, theirsLabel)
			if err != nil {
				return nil, nil, err
			}
			if ook {
				merged[path] = o
			}
			conflicts = append(conflicts, conflict)
		default:
			entry, conflict, err := s.mergeFileEntry(path, b, bok, o, t, oursLabel, theirsLabel)
			if err != nil {
				return nil, nil, err
			}
			if conflict != nil {
				merged[path] = o
				conflicts = append(conflicts, *conflict)
				continue
			}
			merged[path] = entry
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].path < conflicts[j].path })
	return merged, conflicts, nil
}

func sameEntry(a object.TreeEntry, aok bool, b object.TreeEntry, bok bool) bool {
	if aok != bok {
		return false
	}
	if !aok {
		return true
	}
	return a.Hash == b.Hash && a.Mode == b.Mode
}

func (s *Service) modifyDeleteConflict(path string, o object.TreeEntry, ook bool, t object.TreeEntry, tok bool, oursLabel, theirsLabel string) (fileConflict, error) {
	var oursLines, theirsLines []string
	if ook {
		data, binary, err := s.blobContent(o.Hash)
		if err != nil {
			return fileConflict{}, err
		}
		if binary {
			return fileConflict{path: path}, nil
		}
		oursLines = splitLines(string(data))
	}
	if tok {
		data, binary, err := s.blobContent(t.Hash)
		if err != nil {
			return fileConflict{}, err
		}
		if binary {
			return fileConflict{path: path}, nil
		}
		theirsLines = splitLines(string(data))
	}
	var lines []string
	lines = append(lines, "<<<<<<< "+oursLabel)
	lines = append(lines, oursLines...)
	lines = append(lines, "=======")
	lines = append(lines, theirsLines...)
	lines = append(lines, ">>>>>>> "+theirsLabel)
	return fileConflict{path: path, content: joinLines(lines)}, nil
}

// mergeFileEntry merges one path changed on both sides. Returns either the
// merged entry or a conflict.
func (s *Service) mergeFileEntry(path string, b object.TreeEntry, bok bool, o, t object.TreeEntry, oursLabel, theirsLabel string) (object.TreeEntry, *fileConflict, error) {
	var baseData []byte
	if bok {
		data, binary, err := s.blobContent(b.Hash)
		if err != nil {
			return object.TreeEntry{}, nil, err
		}
		if binary {
			return object.TreeEntry{}, &fileConflict{path: path}, nil
		}
		baseData = data
	}
	oursData, oursBinary, err := s.blobContent(o.Hash)
	if err != nil {
		return object.TreeEntry{}, nil, err
	}
	theirsData, theirsBinary, err := s.blobContent(t.Hash)
	if err != nil {
		return object.TreeEntry{}, nil, err
	}
	if oursBinary || theirsBinary {
		return object.TreeEntry{}, &fileConflict{path: path}, nil
	}

	mergedLines, conflicted := threeWayMergeLines(
		splitLines(string(baseData)),
		splitLines(string(oursData)),
		splitLines(string(theirsData)),
		oursLabel, theirsLabel,
	)
	content := joinLines(mergedLines)
	if conflicted {
		return object.TreeEntry{}, &fileConflict{path: path, content: content}, nil
	}
	hash, err := s.writeBlob(content)
	if err != nil {
		return object.TreeEntry{}, nil, err
	}
	return object.TreeEntry{Name: path, Mode: o.Mode, Hash: hash}, nil, nil
}

func (s *Service) blobContent(hash plumbing.Hash) (data []byte, binary bool, err error) {
	blob, err := object.GetBlob(s.repo.Storer, hash)
	if err != nil {
		return nil, false, repoErr("read blob", err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, false, repoErr("read blob", err)
	}
	defer r.Close()
	data, err = io.ReadAll(r)
	if err != nil {
		return nil, false, repoErr("read blob", err)
	}
	return data, bytes.IndexByte(data, 0) >= 0, nil
}

func (s *Service) writeBlob(content []byte) (plumbing.Hash, error) {
	mem := &plumbing.MemoryObject{}
	mem.SetType(plumbing.BlobObject)
	if _, err := mem.Write(content); err != nil {
		return plumbing.ZeroHash, repoErr("write blob", err)
	}
	hash, err := s.repo.Storer.SetEncodedObject(mem)
	if err != nil {
		return plumbing.ZeroHash, repoErr("write blob", err)
	}
	return hash, nil
}

// dirNode is a directory of a tree being rebuilt from flat entries.
type dirNode struct {
	entries  []object.TreeEntry
	children map[string]*dirNode
}

// buildTree stores the tree hierarchy for a flat path map and returns the
// root tree hash.
func (s *Service) buildTree(entries map[string]object.TreeEntry) (plumbing.Hash, error) {
	root := &dirNode{children: make(map[string]*dirNode)}

	paths := make([]string, 0, len(entries))
	for path := range entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		entry := entries[path]
		parts := strings.Split(path, "/")
		node := root
		for _, part := range parts[:len(parts)-1] {
			child, ok := node.children[part]
			if !ok {
				child = &dirNode{children: make(map[string]*dirNode)}
				node.children[part] = child
			}
			node = child
		}
		node.entries = append(node.entries, object.TreeEntry{
			Name: parts[len(parts)-1],
			Mode: entry.Mode,
			Hash: entry.Hash,
		})
	}
	return s.storeTree(root)
}

func (s *Service) storeTree(node *dirNode) (plumbing.Hash, error) {
	var all []object.TreeEntry

	childNames := make([]string, 0, len(node.children))
	for name := range node.children {
		childNames = append(childNames, name)
	}
	sort.Strings(childNames)
	for _, name := range childNames {
		hash, err := s.storeTree(node.children[name])
		if err != nil {
			return plumbing.ZeroHash, err
		}
		all = append(all, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash})
	}
	all = append(all, node.entries...)

	// git orders tree entries as if directory names had a trailing slash
	sort.Slice(all, func(i, j int) bool {
		ni, nj := all[i].Name, all[j].Name
		if all[i].Mode == filemode.Dir {
			ni += "/"
		}
		if all[j].Mode == filemode.Dir {
			nj += "/"
		}
		return ni < nj
	})

	tree := &object.Tree{Entries: all}
	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, repoErr("encode tree", err)
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, repoErr("store tree", err)
	}
	return hash, nil
}
