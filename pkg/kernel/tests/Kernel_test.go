package kerneltests

import "os"
import "path/filepath"
import "testing"

import "golang.org/x/sys/unix"

import "github.com/sirgallo/grsfs/pkg/dispatcher"
import "github.com/sirgallo/grsfs/pkg/group"
import "github.com/sirgallo/grsfs/pkg/kernel"
import "github.com/sirgallo/grsfs/pkg/state"
import "github.com/sirgallo/grsfs/pkg/storage"


func setupKernel(t *testing.T, role group.Role) *kernel.Kernel {
	dir := t.TempDir()
	root := filepath.Join(dir, "storage")
	if mkErr := os.Mkdir(root, 0755); mkErr != nil { t.Fatalf("unable to create root: %s", mkErr.Error()) }

	pt, ptErr := storage.NewPassthrough(root)
	if ptErr != nil { t.Fatalf("unable to create passthrough: %s", ptErr.Error()) }

	clock, clockErr := state.NewClock(filepath.Join(dir, "storage.state"))
	if clockErr != nil { t.Fatalf("unable to create clock: %s", clockErr.Error()) }

	g := group.NewGroup(group.Peer{ Conn: group.Conn{ Host: "a", Port: 9090 }, Role: role })
	d := dispatcher.NewDispatcher(dispatcher.DispatcherOpts{ Storage: pt, Clock: clock, Group: g })

	return kernel.NewKernel(d)
}

func TestOpenWriteCloseReopenRead(t *testing.T) {
	k := setupKernel(t, group.Singular)

	id, openErrno := k.Open("/f", os.O_RDWR | os.O_CREATE, 0644)
	if openErrno != 0 { t.Fatalf("unexpected open errno: %d", openErrno) }

	written := k.Write(id, 0, []byte("hello"))
	t.Logf("actual written: %d, expected written: %d\n", written, 5)
	if written != 5 { t.Errorf("actual written not equal to expected: actual(%d), expected(%d)\n", written, 5) }

	if releaseErrno := k.Release(id); releaseErrno != 0 { t.Errorf("unexpected release errno: %d", releaseErrno) }
	if k.OftLen() != 0 { t.Errorf("expected the open file table to be empty after release") }

	id, openErrno = k.Open("/f", os.O_RDONLY, 0)
	if openErrno != 0 { t.Fatalf("unexpected reopen errno: %d", openErrno) }
	defer k.Release(id)

	data, readErrno := k.Read(id, 0, 5)
	if readErrno != 0 { t.Fatalf("unexpected read errno: %d", readErrno) }

	t.Logf("actual read: %s, expected read: %s\n", string(data), "hello")
	if string(data) != "hello" { t.Errorf("actual read not equal to expected: actual(%s), expected(%s)\n", string(data), "hello") }

	attr, attrErrno := k.Fgetattr(id)
	if attrErrno != 0 || attr.Size != 5 { t.Errorf("expected fgetattr size 5, got %v (%d)", attr, attrErrno) }
}

func TestNegativeErrnos(t *testing.T) {
	k := setupKernel(t, group.Singular)

	_, openErrno := k.Open("/missing", os.O_RDONLY, 0)
	t.Logf("actual errno: %d, expected errno: %d\n", openErrno, -int(unix.ENOENT))
	if openErrno != -int(unix.ENOENT) { t.Errorf("actual errno not equal to expected: actual(%d), expected(%d)\n", openErrno, -int(unix.ENOENT)) }

	if errno := k.Release(kernel.FileID(42)); errno != -int(unix.EBADF) { t.Errorf("expected EBADF for an unknown file id, got %d", errno) }
	if _, errno := k.Read(kernel.FileID(42), 0, 1); errno != -int(unix.EBADF) { t.Errorf("expected EBADF for an unknown file id, got %d", errno) }

	if errno := k.Rmdir("/missing"); errno != -int(unix.ENOENT) { t.Errorf("expected ENOENT from rmdir, got %d", errno) }
	if errno := k.Mkdir("../escape", 0755); errno != -int(unix.EPERM) { t.Errorf("expected EPERM for an escaping path, got %d", errno) }
}

func TestNamespaceOps(t *testing.T) {
	k := setupKernel(t, group.Singular)

	if errno := k.Mkdir("/d", 0755); errno != 0 { t.Fatalf("unexpected mkdir errno: %d", errno) }
	if written := k.WritePath("/d/a", 0, []byte("x")); written != 1 { t.Fatalf("unexpected write result: %d", written) }
	if errno := k.Rename("/d/a", "/d/b"); errno != 0 { t.Fatalf("unexpected rename errno: %d", errno) }
	if errno := k.Symlink("b", "/d/link"); errno != 0 { t.Fatalf("unexpected symlink errno: %d", errno) }

	names, dirErrno := k.Readdir("/d")
	if dirErrno != 0 { t.Fatalf("unexpected readdir errno: %d", dirErrno) }

	expected := []string{ "b", "link" }
	t.Logf("actual names: %v, expected names: %v\n", names, expected)
	if len(names) != len(expected) || names[0] != expected[0] || names[1] != expected[1] {
		t.Errorf("actual names not equal to expected: actual(%v), expected(%v)\n", names, expected)
	}

	target, linkErrno := k.Readlink("/d/link")
	if linkErrno != 0 || target != "b" { t.Errorf("actual target not equal to expected: actual(%s), expected(%s)\n", target, "b") }

	if errno := k.Chmod("/d/b", 0600); errno != 0 { t.Errorf("unexpected chmod errno: %d", errno) }
	attr, _ := k.Getattr("/d/b")
	if attr.Mode & 0777 != 0600 { t.Errorf("actual mode not equal to expected: actual(%o), expected(%o)\n", attr.Mode & 0777, 0600) }

	if errno := k.Truncate("/d/b", 0); errno != 0 { t.Errorf("unexpected truncate errno: %d", errno) }
	if errno := k.Unlink("/d/link"); errno != 0 { t.Errorf("unexpected unlink errno: %d", errno) }
	if errno := k.Unlink("/d/b"); errno != 0 { t.Errorf("unexpected unlink errno: %d", errno) }
	if errno := k.Rmdir("/d"); errno != 0 { t.Errorf("unexpected rmdir errno: %d", errno) }

	root, _ := k.Readdir("/")
	if len(root) != 0 { t.Errorf("mkdir then rmdir must leave the listing unchanged, got %v", root) }

	if _, errno := k.Statfs(); errno != 0 { t.Errorf("unexpected statfs errno: %d", errno) }
}

func TestReplicaRefusesLocalOps(t *testing.T) {
	k := setupKernel(t, group.Replica)

	if written := k.WritePath("/f", 0, []byte("x")); written != -int(unix.EROFS) { t.Errorf("expected EROFS for a local write on a replica, got %d", written) }
	if _, errno := k.ReadPath("/f", 0, 1); errno != -int(unix.EROFS) { t.Errorf("expected EROFS for a local read on a replica, got %d", errno) }
}

func TestMetadataOps(t *testing.T) {
	k := setupKernel(t, group.Singular)

	if written := k.WritePath("/f", 0, []byte("data")); written != 4 { t.Fatalf("unexpected write result: %d", written) }
	if errno := k.Link("/f", "/hard"); errno != 0 { t.Fatalf("unexpected link errno: %d", errno) }
	if errno := k.Link("/f", "/hard"); errno != -int(unix.EEXIST) { t.Errorf("expected EEXIST on a second link, got %d", errno) }

	if errno := k.Chown("/f", -1, os.Getgid()); errno != 0 { t.Errorf("unexpected chown errno: %d", errno) }
	if errno := k.Mknod("/fifo", unix.S_IFIFO | 0600, 0); errno != 0 { t.Errorf("unexpected mknod errno: %d", errno) }

	mtime := int64(1300000000) * 1000000000
	if errno := k.Utimens("/hard", mtime, mtime); errno != 0 { t.Fatalf("unexpected utimens errno: %d", errno) }

	attr, attrErrno := k.Getattr("/f")
	if attrErrno != 0 { t.Fatalf("unexpected getattr errno: %d", attrErrno) }

	t.Logf("actual nlink: %d, mtime: %d, expected nlink: %d, mtime: %d\n", attr.Nlink, attr.Mtime, 2, 1300000000)
	if attr.Nlink != 2 || attr.Mtime != 1300000000 {
		t.Errorf("actual attr not equal to expected: actual(%d, %d), expected(%d, %d)\n", attr.Nlink, attr.Mtime, 2, 1300000000)
	}
}
