package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"

	"github.com/volsys/go-exfat"
)

type rootParameters struct {
	Filepath     string `short:"f" long:"filepath" description:"File-path of exFAT filesystem" required:"true"`
	FirstCluster uint32 `short:"c" long:"cluster" description:"First cluster of the chain (defaults to the root directory)"`
}

var (
	rootArguments = new(rootParameters)
)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	f, err := os.Open(rootArguments.Filepath)
	log.PanicIf(err)

	defer f.Close()

	v, err := exfat.MountVolume(f)
	log.PanicIf(err)

	bsh := v.BootSector()

	firstCluster := rootArguments.FirstCluster
	if firstCluster == 0 {
		firstCluster = bsh.FirstClusterOfRootDirectory
	}

	fat, err := v.ReadActiveFat()
	log.PanicIf(err)

	cc := exfat.NewClusterChain(fat, firstCluster)

	count := int64(0)
	for cc.Next() == true {
		fmt.Printf("%d\n", cc.Cluster())
		count++
	}

	// The chain terminator occupies one more cluster than the walk yields.
	if cc.Err() == nil {
		count++
	}

	fmt.Printf("\n")
	fmt.Printf("%s cluster(s), %s\n", humanize.Comma(count), humanize.IBytes(uint64(count)*uint64(bsh.ClusterSize())))

	if cc.Err() != nil {
		fmt.Printf("\n")
		fmt.Printf("WARNING: %s\n", cc.Err())
	}
}
