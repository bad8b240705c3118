// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that waits on grace periods or idle timeouts (the process
// launcher's cancellation grace, the build server's idle shutdown, the
// client's wait for an auto-started server) takes a Clock instead of
// calling the time package directly. Real returns the standard
// library behavior; Fake returns a clock that moves only when the test
// calls Advance.
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	launcher := process.NewLauncher(process.LauncherOptions{Clock: fake})
//	// ... start a child, cancel its context ...
//	fake.WaitForTimers(1)          // the grace timer is registered
//	fake.Advance(5 * time.Second)  // escalate to kill
package clock
