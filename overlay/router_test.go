// Copyright the wasivfs Authors.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package overlay

import (
	"syscall"
	"testing"

	"github.com/wasivfs/wasivfs/storage"
	"github.com/wasivfs/wasivfs/vfs"
)

// fakeHost is a minimal HostWASI double. Every method other than the
// handful the tests below actually exercise panics, so a test that
// reaches a Passthrough path it didn't anticipate fails loudly instead of
// silently returning a zero value.
type fakeHost struct {
	reads map[uint32][]byte
}

func (f *fakeHost) unexpected(name string) {
	panic("fakeHost: unexpected call to " + name)
}

func (f *fakeHost) FdAdvise(fd uint32, offset, length uint64, advice uint8) syscall.Errno {
	f.unexpected("FdAdvise")
	return 0
}
func (f *fakeHost) FdAllocate(fd uint32, offset, length uint64) syscall.Errno {
	f.unexpected("FdAllocate")
	return 0
}
func (f *fakeHost) FdClose(fd uint32) syscall.Errno { return 0 }
func (f *fakeHost) FdDatasync(fd uint32) syscall.Errno {
	f.unexpected("FdDatasync")
	return 0
}
func (f *fakeHost) FdFdstatGet(fd uint32) (vfs.Fdstat, syscall.Errno) {
	f.unexpected("FdFdstatGet")
	return vfs.Fdstat{}, 0
}
func (f *fakeHost) FdFdstatSetFlags(fd uint32, flags uint32) syscall.Errno {
	f.unexpected("FdFdstatSetFlags")
	return 0
}
func (f *fakeHost) FdFdstatSetRights(fd uint32, base, inheriting vfs.Rights) syscall.Errno {
	f.unexpected("FdFdstatSetRights")
	return 0
}
func (f *fakeHost) FdFilestatGet(fd uint32) (vfs.Filestat, syscall.Errno) {
	f.unexpected("FdFilestatGet")
	return vfs.Filestat{}, 0
}
func (f *fakeHost) FdFilestatSetSize(fd uint32, size uint64) syscall.Errno {
	f.unexpected("FdFilestatSetSize")
	return 0
}
func (f *fakeHost) FdFilestatSetTimes(fd uint32, atim, mtim uint64, fstFlags uint16) syscall.Errno {
	f.unexpected("FdFilestatSetTimes")
	return 0
}
func (f *fakeHost) FdPread(fd uint32, iovs [][]byte, offset uint64) (uint32, syscall.Errno) {
	f.unexpected("FdPread")
	return 0, 0
}
func (f *fakeHost) FdPrestatGet(fd uint32) (Prestat, syscall.Errno) {
	f.unexpected("FdPrestatGet")
	return Prestat{}, 0
}
func (f *fakeHost) FdPrestatDirName(fd uint32, buf []byte) syscall.Errno {
	f.unexpected("FdPrestatDirName")
	return 0
}
func (f *fakeHost) FdPwrite(fd uint32, iovs [][]byte, offset uint64) (uint32, syscall.Errno) {
	f.unexpected("FdPwrite")
	return 0, 0
}
func (f *fakeHost) FdRead(fd uint32, iovs [][]byte) (uint32, syscall.Errno) {
	content, ok := f.reads[fd]
	if !ok {
		f.unexpected("FdRead")
	}
	n := copy(iovs[0], content)
	return uint32(n), 0
}
func (f *fakeHost) FdReaddir(fd uint32, buf []byte, cookie uint64) (uint32, syscall.Errno) {
	f.unexpected("FdReaddir")
	return 0, 0
}
func (f *fakeHost) FdRenumber(fd, to uint32) syscall.Errno {
	f.unexpected("FdRenumber")
	return 0
}
func (f *fakeHost) FdSeek(fd uint32, offset int64, whence int8) (uint64, syscall.Errno) {
	f.unexpected("FdSeek")
	return 0, 0
}
func (f *fakeHost) FdSync(fd uint32) syscall.Errno {
	f.unexpected("FdSync")
	return 0
}
func (f *fakeHost) FdTell(fd uint32) (uint64, syscall.Errno) {
	f.unexpected("FdTell")
	return 0, 0
}
func (f *fakeHost) FdWrite(fd uint32, iovs [][]byte) (uint32, syscall.Errno) {
	f.unexpected("FdWrite")
	return 0, 0
}
func (f *fakeHost) PathCreateDirectory(fd uint32, path string) syscall.Errno {
	f.unexpected("PathCreateDirectory")
	return 0
}
func (f *fakeHost) PathFilestatGet(fd uint32, flags uint32, path string) (vfs.Filestat, syscall.Errno) {
	f.unexpected("PathFilestatGet")
	return vfs.Filestat{}, 0
}
func (f *fakeHost) PathFilestatSetTimes(fd uint32, flags uint32, path string, atim, mtim uint64, fstFlags uint16) syscall.Errno {
	f.unexpected("PathFilestatSetTimes")
	return 0
}
func (f *fakeHost) PathLink(oldFD uint32, oldFlags uint32, oldPath string, newFD uint32, newPath string) syscall.Errno {
	f.unexpected("PathLink")
	return 0
}
func (f *fakeHost) PathOpen(fd uint32, dirflags uint32, path string, oflags uint32, rightsBase, rightsInheriting vfs.Rights, fdflags uint32) (uint32, syscall.Errno) {
	f.unexpected("PathOpen")
	return 0, 0
}
func (f *fakeHost) PathReadlink(fd uint32, path string, buf []byte) (uint32, syscall.Errno) {
	f.unexpected("PathReadlink")
	return 0, 0
}
func (f *fakeHost) PathRemoveDirectory(fd uint32, path string) syscall.Errno {
	f.unexpected("PathRemoveDirectory")
	return 0
}
func (f *fakeHost) PathRename(fd uint32, oldPath string, newFD uint32, newPath string) syscall.Errno {
	f.unexpected("PathRename")
	return 0
}
func (f *fakeHost) PathSymlink(oldPath string, fd uint32, newPath string) syscall.Errno {
	f.unexpected("PathSymlink")
	return 0
}
func (f *fakeHost) PathUnlinkFile(fd uint32, path string) syscall.Errno {
	f.unexpected("PathUnlinkFile")
	return 0
}

var _ HostWASI = (*fakeHost)(nil)

func newTestRouter(t *testing.T) (*Router, *vfs.EmbeddedFS) {
	t.Helper()
	backend := storage.NewArena()
	embedded := vfs.NewEmbeddedFS(backend)
	_, root := embedded.PreopenDir("/sandbox")
	backend.NewFile(root, "hello.txt", []byte("hello world"))
	backend.NewDir(root, "sub")

	host := &fakeHost{reads: map[uint32][]byte{}}
	router := NewRouter(embedded, host, nil, []vfs.VFD{0})
	return router, embedded
}

func TestRouterPreopenOrdering(t *testing.T) {
	router, _ := newTestRouter(t)
	for fd := uint32(0); fd <= 2; fd++ {
		b, errno := router.Backing(fd)
		if errno != 0 {
			t.Fatalf("stdio fd %d: errno %v", fd, errno)
		}
		if b.Kind != Passthrough {
			t.Errorf("stdio fd %d should be Passthrough", fd)
		}
	}
	b, errno := router.Backing(3)
	if errno != 0 {
		t.Fatalf("virtual preopen: errno %v", errno)
	}
	if b.Kind != Virtual {
		t.Errorf("fd 3 should be the virtual preopen, got %+v", b)
	}
}

func TestRouterFdPrestat(t *testing.T) {
	router, _ := newTestRouter(t)
	prestat, errno := router.FdPrestatGet(3)
	if errno != 0 {
		t.Fatalf("FdPrestatGet: errno %v", errno)
	}
	if !prestat.IsDir || prestat.DirNameLen != uint32(len("/sandbox")) {
		t.Errorf("prestat = %+v", prestat)
	}

	buf := make([]byte, prestat.DirNameLen)
	if errno := router.FdPrestatDirName(3, buf); errno != 0 {
		t.Fatalf("FdPrestatDirName: errno %v", errno)
	}
	if string(buf) != "/sandbox" {
		t.Errorf("dir name = %q, want /sandbox", buf)
	}
}

func TestRouterPathOpenAndRead(t *testing.T) {
	router, _ := newTestRouter(t)
	fd, errno := router.PathOpen(3, 0, "hello.txt", 0, vfs.ReadOnlyRights, vfs.ReadOnlyRights, 0)
	if errno != 0 {
		t.Fatalf("PathOpen: errno %v", errno)
	}

	buf := make([]byte, 5)
	n, errno := router.FdRead(fd, [][]byte{buf})
	if errno != 0 {
		t.Fatalf("FdRead: errno %v", errno)
	}
	if n != 5 || string(buf) != "hello" {
		t.Errorf("read %q (n=%d), want %q", buf, n, "hello")
	}

	offset, errno := router.FdTell(fd)
	if errno != 0 {
		t.Fatalf("FdTell: errno %v", errno)
	}
	if offset != 5 {
		t.Errorf("offset = %d, want 5", offset)
	}
}

func TestRouterFdReadDirIsISDIR(t *testing.T) {
	router, _ := newTestRouter(t)
	fd, errno := router.PathOpen(3, 0, "sub", 0, vfs.ReadOnlyRights, vfs.ReadOnlyRights, 0)
	if errno != 0 {
		t.Fatalf("PathOpen: errno %v", errno)
	}
	_, errno = router.FdRead(fd, [][]byte{make([]byte, 4)})
	if errno != syscall.EISDIR {
		t.Errorf("errno = %v, want EISDIR", errno)
	}
	_, errno = router.FdTell(fd)
	if errno != syscall.EISDIR {
		t.Errorf("FdTell errno = %v, want EISDIR", errno)
	}
}

func TestRouterFdSeek(t *testing.T) {
	router, _ := newTestRouter(t)
	fd, _ := router.PathOpen(3, 0, "hello.txt", 0, vfs.ReadOnlyRights, vfs.ReadOnlyRights, 0)

	off, errno := router.FdSeek(fd, 6, WhenceSet)
	if errno != 0 || off != 6 {
		t.Fatalf("seek SET: off=%d errno=%v", off, errno)
	}
	off, errno = router.FdSeek(fd, -1, WhenceCur)
	if errno != 0 || off != 5 {
		t.Fatalf("seek CUR: off=%d errno=%v", off, errno)
	}
	off, errno = router.FdSeek(fd, 0, WhenceEnd)
	if errno != 0 || off != uint64(len("hello world")) {
		t.Fatalf("seek END: off=%d errno=%v", off, errno)
	}
	_, errno = router.FdSeek(fd, -100, WhenceSet)
	if errno != syscall.EINVAL {
		t.Errorf("seek past start: errno = %v, want EINVAL", errno)
	}
}

func TestRouterFdReaddirLists(t *testing.T) {
	router, _ := newTestRouter(t)
	buf := make([]byte, 4096)
	n, errno := router.FdReaddir(3, buf, 0)
	if errno != 0 {
		t.Fatalf("FdReaddir: errno %v", errno)
	}
	if n == 0 {
		t.Errorf("expected some bytes written, got 0")
	}
}

func TestRouterFdReaddirTruncates(t *testing.T) {
	router, _ := newTestRouter(t)
	tiny := make([]byte, 4)
	n, errno := router.FdReaddir(3, tiny, 0)
	if errno != 0 {
		t.Fatalf("FdReaddir: errno %v", errno)
	}
	if n != uint32(len(tiny)) {
		t.Errorf("truncated bufused = %d, want buf_len %d", n, len(tiny))
	}
}

func TestRouterPathReadlinkIsInval(t *testing.T) {
	router, _ := newTestRouter(t)
	_, errno := router.PathReadlink(3, "hello.txt", make([]byte, 16))
	if errno != syscall.EINVAL {
		t.Errorf("errno = %v, want EINVAL", errno)
	}
}

func TestRouterPathRenameAcrossVirtualIsNotsup(t *testing.T) {
	router, _ := newTestRouter(t)
	errno := router.PathRename(3, "hello.txt", 3, "moved.txt")
	if errno != syscall.ENOTSUP {
		t.Errorf("errno = %v, want ENOTSUP", errno)
	}
}

func TestRouterPollOneoffAlwaysNotsup(t *testing.T) {
	router, _ := newTestRouter(t)
	if errno := router.PollOneoff(); errno != syscall.ENOTSUP {
		t.Errorf("errno = %v, want ENOTSUP", errno)
	}
}

func TestRouterFdFdstatSetFlagsOnVirtual(t *testing.T) {
	router, _ := newTestRouter(t)
	fd, _ := router.PathOpen(3, 0, "hello.txt", 0, vfs.ReadOnlyRights, vfs.ReadOnlyRights, 0)
	if errno := router.FdFdstatSetFlags(fd, 7); errno != 0 {
		t.Fatalf("FdFdstatSetFlags: errno %v", errno)
	}
	stat, errno := router.FdFdstatGet(fd)
	if errno != 0 {
		t.Fatalf("FdFdstatGet: errno %v", errno)
	}
	if stat.Flags != 7 {
		t.Errorf("flags = %d, want 7", stat.Flags)
	}
}

func TestRouterFdFdstatSetRightsOnVirtualIsNotsup(t *testing.T) {
	router, _ := newTestRouter(t)
	fd, _ := router.PathOpen(3, 0, "hello.txt", 0, vfs.ReadOnlyRights, vfs.ReadOnlyRights, 0)
	if errno := router.FdFdstatSetRights(fd, 0, 0); errno != syscall.ENOTSUP {
		t.Errorf("errno = %v, want ENOTSUP", errno)
	}
}

func TestRouterBadFD(t *testing.T) {
	router, _ := newTestRouter(t)
	if _, errno := router.Backing(999); errno != syscall.EBADF {
		t.Errorf("errno = %v, want EBADF", errno)
	}
}
