/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2017 Markus Stenberg
 *
 * Created:       Fri Dec 29 13:18:26 2017 mstenber
 * Last modified: Sun Mar 17 18:22:40 2019 mstenber
 * Edit time:     104 min
 *
 */

package main

import (
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/fingon/go-sgf/fs"
	"github.com/fingon/go-sgf/mlog"
	"github.com/fingon/go-sgf/storage"
	"github.com/fingon/go-sgf/storage/factory"
	"github.com/hanwen/go-fuse/fuse"
	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
	"github.com/zeebo/xxh3"
)

const usage = `Usage:

%s [flags] COMMAND [ARGS]

Commands:
  format            create an empty volume (-size blocks if the store is new)
  ls                list the files
  put NAME          store stdin as NAME
  cat NAME          write NAME to stdout
  rm NAME           delete NAME
  sum NAME          print xxh3 hash of NAME
  check             verify the volume structure
  dump              print the blocks of each file
  mount MOUNTDIR    serve the volume over fuse until unmounted

Flags:
`

type command struct {
	args int
	run  func(myfs *fs.Fs, args []string) error
}

var jsonOutput *bool

var commands = map[string]command{
	"format": {0, func(myfs *fs.Fs, args []string) error {
		fmt.Printf("%d blocks, %d free\n", myfs.FAT().DiskSize(), myfs.FreeBlocks())
		return nil
	}},
	"ls": {0, func(myfs *fs.Fs, args []string) error {
		l := myfs.List()
		if *jsonOutput {
			return codec.NewEncoder(os.Stdout, &codec.JsonHandle{Indent: 2}).Encode(l)
		}
		for _, e := range l {
			fmt.Printf("%-10s %10d %v\n", e.Name, e.Size, e.Inode)
		}
		fmt.Printf("%d blocks free\n", myfs.FreeBlocks())
		return nil
	}},
	"put": {1, func(myfs *fs.Fs, args []string) error {
		w, err := myfs.OpenWriter(args[0])
		if err != nil {
			return err
		}
		_, err = io.Copy(w, os.Stdin)
		cerr := w.Close()
		if err == nil {
			err = cerr
		}
		return err
	}},
	"cat": {1, func(myfs *fs.Fs, args []string) error {
		r, err := myfs.OpenReader(args[0])
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = io.Copy(os.Stdout, r)
		return err
	}},
	"rm": {1, func(myfs *fs.Fs, args []string) error {
		return myfs.Delete(args[0])
	}},
	"sum": {1, func(myfs *fs.Fs, args []string) error {
		r, err := myfs.OpenReader(args[0])
		if err != nil {
			return err
		}
		defer r.Close()
		b, err := ioutil.ReadAll(r)
		if err != nil {
			return err
		}
		fmt.Printf("%016x  %s\n", xxh3.Hash(b), args[0])
		return nil
	}},
	"check": {0, func(myfs *fs.Fs, args []string) error {
		return myfs.Check()
	}},
	"dump": {0, func(myfs *fs.Fs, args []string) error {
		fmt.Print(myfs)
		return nil
	}},
}

func mount(myfs *fs.Fs, mountpoint string) error {
	opts := &fuse.MountOptions{Name: "sgf", FsName: "sgf"}
	if mlog.IsEnabled() {
		opts.Debug = true
	}
	fuseServer, err := fuse.NewServer(fs.NewOps(myfs), mountpoint, opts)
	if err != nil {
		return err
	}
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		if err := fuseServer.Unmount(); err != nil {
			log.Printf("unmount failed: %v", err)
		}
	}()

	// loop is here
	fuseServer.Serve()
	return nil
}

func main() {
	os.Exit(run())
}

// run returns the exit code, so that the deferred cleanup is done
// before main exits.
func run() int {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		flag.PrintDefaults()
	}
	backendp := flag.String("backend", "bolt",
		fmt.Sprintf("Backend to use (possible: %v)", factory.List()))
	dir := flag.String("dir", ".", "Storage directory")
	size := flag.Int("size", 1024, "Disk size in blocks of a new store (format only)")
	password := flag.String("password", "", "Password; empty disables encryption")
	salt := flag.String("salt", "", "Salt")
	siv := flag.Bool("siv", false, "Use deterministic (AES-SIV) encryption")
	compress := flag.Bool("compress", false, "Compress blocks with snappy")
	cachesize := flag.Int("cachesize", 64, "Number of blocks to cache")
	format := flag.Bool("format", false, "Format the volume first if it is not formatted")
	cpuprofile := flag.String("cpuprofile", "", "CPU profile file")
	jsonOutput = flag.Bool("json", false, "JSON output for ls")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		return 1
	}
	name := flag.Arg(0)
	args := flag.Args()[1:]
	cmd, ok := commands[name]
	if name == "mount" {
		cmd.args = 1
	} else if !ok {
		flag.Usage()
		return 1
	}
	if len(args) != cmd.args {
		flag.Usage()
		return 1
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Print(err)
			return 1
		}
		defer f.Close()
		if err = pprof.StartCPUProfile(f); err != nil {
			log.Print(err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	cc := factory.CodecConfiguration{Password: *password, Salt: *salt,
		Deterministic: *siv, Compress: *compress}
	beconf := storage.BackendConfiguration{Directory: *dir,
		Codec: cc.Codec(), CacheSize: *cachesize}
	// An existing store keeps the size it was created with
	if (name == "format" || *format) && !factory.Exists(*backendp, *dir) {
		beconf.DiskSize = *size
	}
	be, err := factory.NewWithConfig(*backendp, beconf)
	if err != nil {
		log.Print(err)
		return 1
	}

	var myfs *fs.Fs
	if name == "format" {
		myfs = fs.Format(be)
	} else {
		myfs, err = fs.Mount(be)
		if errors.Cause(err) == fs.ErrNotFormatted && *format {
			myfs, err = fs.Format(be), nil
		}
		if err != nil {
			be.Close()
			log.Print(err)
			return 1
		}
	}

	if name == "mount" {
		err = mount(myfs, args[0])
	} else {
		err = cmd.run(myfs, args)
	}

	// myfs will take care of backend clearing as well
	myfs.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return 1
	}
	return 0
}
