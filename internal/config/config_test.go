/* SPDX-License-Identifier: GPL-3.0-or-later
 *
 * CryptVaultPlayer
 * Copyright (C) 2026 e1z0 <e1z0@icloud.com>
 *
 * This file is part of CryptVaultPlayer.
 *
 * CryptVaultPlayer is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * CryptVaultPlayer is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with CryptVaultPlayer.  If not, see <https://www.gnu.org/licenses/>.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	e := Environment{
		ConfigDir:    dir,
		SettingsFile: filepath.Join(dir, "settings.yml"),
		DebugLogFile: filepath.Join(dir, "debug.log"),
	}

	s, err := Load(e)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s != Defaults() {
		t.Fatalf("Load() on missing file = %+v, want Defaults() = %+v", s, Defaults())
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	e := Environment{
		ConfigDir:    dir,
		SettingsFile: filepath.Join(dir, "settings.yml"),
		DebugLogFile: filepath.Join(dir, "debug.log"),
	}

	want := Settings{
		VolumeStep:      0.2,
		SeekStepSeconds: 3,
		HotkeyDebounce:  200,
		DecoderThreads:  4,
		WindowWidth:     1920,
		WindowHeight:    1080,
	}
	if err := Save(e, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(e)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %+v, want %+v", got, want)
	}
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	e := Environment{
		ConfigDir:    dir,
		SettingsFile: filepath.Join(dir, "settings.yml"),
		DebugLogFile: filepath.Join(dir, "debug.log"),
	}
	if err := Save(e, Defaults()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(e.SettingsFile + ".tmp"); err == nil {
		t.Fatalf("temp file %s.tmp still present after Save", e.SettingsFile)
	}
}
