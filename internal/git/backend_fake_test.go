package git

// fakeBackend lets unit tests script worktree-level behavior without a
// repository on disk.
type fakeBackend struct {
	repoPath string

	headStateFunc    func() (hash string, headName string, ok bool, err error)
	listBranchesFunc func() ([]string, error)
	checkoutFunc     func(name string, create bool) error
	statusFunc       func() ([]Change, error)

	lastCheckout       string
	lastCheckoutCreate bool
}

func (f *fakeBackend) RepoPath() string {
	return f.repoPath
}

func (f *fakeBackend) HeadState() (string, string, bool, error) {
	if f.headStateFunc == nil {
		return "", "", false, nil
	}
	return f.headStateFunc()
}

func (f *fakeBackend) ListBranchNames() ([]string, error) {
	if f.listBranchesFunc == nil {
		return nil, nil
	}
	return f.listBranchesFunc()
}

func (f *fakeBackend) Checkout(name string, create bool) error {
	f.lastCheckout = name
	f.lastCheckoutCreate = create
	if f.checkoutFunc == nil {
		return nil
	}
	return f.checkoutFunc(name, create)
}

func (f *fakeBackend) Status() ([]Change, error) {
	if f.statusFunc == nil {
		return nil, nil
	}
	return f.statusFunc()
}
