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

// Package config loads and persists the player's YAML settings file at
// ~/.config/cryptvaultplayer/settings.yml.
package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v2"
)

const appName = "cryptvaultplayer"

// Settings holds the user-tunable defaults; everything here has a
// sensible zero-value fallback applied by Defaults.
type Settings struct {
	VolumeStep      float32 `yaml:"volume_step,omitempty"`
	SeekStepSeconds int     `yaml:"seek_step_seconds,omitempty"`
	HotkeyDebounce  int     `yaml:"hotkey_debounce_ms,omitempty"`
	DecoderThreads  int     `yaml:"decoder_threads,omitempty"`
	WindowWidth     int     `yaml:"window_width,omitempty"`
	WindowHeight    int     `yaml:"window_height,omitempty"`
}

// Defaults returns the out-of-the-box Settings.
func Defaults() Settings {
	return Settings{
		VolumeStep:      0.1,
		SeekStepSeconds: 1,
		HotkeyDebounce:  150,
		DecoderThreads:  0,
		WindowWidth:     1280,
		WindowHeight:    720,
	}
}

// Environment is the set of resolved filesystem paths config and
// logging need.
type Environment struct {
	ConfigDir    string
	SettingsFile string
	DebugLogFile string
}

var (
	mu  sync.Mutex
	env Environment
)

// InitEnvironment resolves ~/.config/cryptvaultplayer and ensures it
// exists; it must run before Load/Save or InitLogging.
func InitEnvironment() (Environment, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Environment{}, err
	}
	dir := filepath.Join(home, ".config", appName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Environment{}, err
	}
	env = Environment{
		ConfigDir:    dir,
		SettingsFile: filepath.Join(dir, "settings.yml"),
		DebugLogFile: filepath.Join(dir, "debug.log"),
	}
	return env, nil
}

// InitLogging points the standard logger at the debug log file,
// additionally echoing to stderr when verbose is set.
func InitLogging(e Environment, verbose bool) error {
	file, err := os.OpenFile(e.DebugLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	if verbose {
		log.SetOutput(io.MultiWriter(file, os.Stderr))
	} else {
		log.SetOutput(file)
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	return nil
}

// Load reads settings.yml, falling back to Defaults if it does not yet
// exist.
func Load(e Environment) (Settings, error) {
	mu.Lock()
	defer mu.Unlock()

	s := Defaults()
	b, err := os.ReadFile(e.SettingsFile)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, err
	}
	return s, nil
}

// Save writes settings via a temp-file-then-rename so a crash mid-write
// never corrupts the previous settings.yml.
func Save(e Environment, s Settings) error {
	mu.Lock()
	defer mu.Unlock()

	tmp := e.SettingsFile + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f)
	if err := enc.Encode(&s); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, e.SettingsFile)
}
