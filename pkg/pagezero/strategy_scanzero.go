// Copyright 2024 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pagezero

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
)

type ReclaimerScanZeroConfig struct {
	// ScanWindow limits one scan to this many bytes. 0 covers the
	// whole region in a single window. Must be page aligned.
	ScanWindow uint64
	// FullWindowDiscard substitutes one discard advice call for the
	// zeroing pass whenever a scan reports its window fully dirty.
	FullWindowDiscard bool
}

const reclaimerScanZeroDefaults string = `{"ScanWindow":0,"FullWindowDiscard":false}`

// ReclaimerScanZero finds the written pages of a region with a pagemap
// scan and zeroes only those. On kernels without the scan ioctl the
// reclaimer degrades to discard advice over the whole region, keeping
// its own result tag.
type ReclaimerScanZero struct {
	config   *ReclaimerScanZeroConfig
	pagemap  *ProcPagemapFile
	buf      []PageRange
	window   uint64
	degraded bool

	scanStats      StatsScan
	zeroedBytes    uint64
	discardedBytes uint64
}

var degradedScanWarning sync.Once

func init() {
	ReclaimerRegister("scanzero", NewReclaimerScanZero)
}

func NewReclaimerScanZero() (Reclaimer, error) {
	z := &ReclaimerScanZero{}
	if err := z.SetConfigJson(reclaimerScanZeroDefaults); err != nil {
		return nil, errors.New("invalid scanzero default configuration")
	}
	return z, nil
}

func (z *ReclaimerScanZero) SetConfigJson(configJson string) error {
	config := ReclaimerScanZeroConfig{}
	if err := json.Unmarshal([]byte(configJson), &config); err != nil {
		return err
	}
	z.config = &config
	return nil
}

func (z *ReclaimerScanZero) GetConfigJson() string {
	if z.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(z.config); err == nil {
		return string(configStr)
	}
	return ""
}

func (z *ReclaimerScanZero) Strategy() Strategy {
	return StrategyScanAndZero
}

func (z *ReclaimerScanZero) ForceResident() bool {
	return false
}

// Prepare opens the pagemap of this process and sizes the scan buffer
// for the worst case of the chosen window, one range per page.
func (z *ReclaimerScanZero) Prepare(regionSize uint64) error {
	if !PagemapScanAvailable() {
		z.degraded = true
		degradedScanWarning.Do(func() {
			log.Warnf("kernel has no PAGEMAP_SCAN, scan strategies degrade to discard advice")
		})
		return nil
	}
	window := z.config.ScanWindow
	if window == 0 || window > regionSize {
		window = regionSize
	}
	if !alignedTo(window) {
		return errors.Wrapf(ErrUnaligned, "scan window %d", window)
	}
	pagemap, err := ProcPagemapOpen(os.Getpid())
	if err != nil {
		return err
	}
	z.pagemap = pagemap
	z.window = window
	z.buf = make([]PageRange, window/constUPagesize)
	return nil
}

func (z *ReclaimerScanZero) Reclaim(region *Region) error {
	if z.degraded {
		if err := discardRange(region.Addr(), region.Size()); err != nil {
			return err
		}
		z.discardedBytes += region.Size()
		return nil
	}
	if z.pagemap == nil {
		return errors.New("scanzero used without Prepare")
	}
	addr := region.Addr()
	size := region.Size()
	view := region.View()
	for off := uint64(0); off < size; off += z.window {
		length := z.window
		if off+length > size {
			length = size - off
		}
		set, err := z.pagemap.ScanWritten(addr+off, length, z.buf)
		if err != nil {
			return err
		}
		z.scanStats.scans += 1
		z.scanStats.syscalls += set.Syscalls()
		z.scanStats.scannedPages += length / constUPagesize
		z.scanStats.matchedPages += set.Pages()
		z.scanStats.ranges += uint64(len(set.Ranges()))
		if z.config.FullWindowDiscard && set.Bytes() == length {
			if err := discardRange(addr+off, length); err != nil {
				return err
			}
			z.discardedBytes += length
			continue
		}
		for _, pr := range set.Ranges() {
			first := pr.Start() - addr
			zeroBytes(view[first : first+pr.Length()])
		}
		z.zeroedBytes += set.Bytes()
	}
	return nil
}

func (z *ReclaimerScanZero) Close() error {
	if z.scanStats.scans > 0 {
		stats.Store(z.scanStats)
		z.scanStats = StatsScan{}
	}
	if z.zeroedBytes > 0 {
		stats.Store(StatsZeroed{bytes: z.zeroedBytes})
		z.zeroedBytes = 0
	}
	if z.discardedBytes > 0 {
		stats.Store(StatsDiscarded{bytes: z.discardedBytes})
		z.discardedBytes = 0
	}
	if z.pagemap != nil {
		pagemap := z.pagemap
		z.pagemap = nil
		return pagemap.Close()
	}
	return nil
}
