package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/volsys/go-exfat"
)

type rootParameters struct {
	Filepath      string `short:"f" long:"filepath" description:"File-path of exFAT filesystem" required:"true"`
	ShowBackup    bool   `short:"b" long:"backup" description:"Show the backup boot region instead of the main one"`
	OemParameters bool   `short:"o" long:"oem" description:"Also show the OEM parameters"`
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

	br := v.MainBootRegion()
	if rootArguments.ShowBackup == true {
		br = v.BackupBootRegion()
	}

	br.Header.Dump()

	if rootArguments.OemParameters == true {
		br.OemParameters.Dump()
	}

	err = v.CheckRegionConsistency()
	if err != nil {
		fmt.Printf("WARNING: %s\n", err)
	}
}
