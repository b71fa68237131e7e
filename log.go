// Copyright 2024 The Pruner Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pruner

import "github.com/golang/glog"

// logTrace and logDebug mirror the verbosity levels the teacher reserves
// for hot-path tracing (glog.V(2) for per-call detail, glog.V(1) for
// coarser per-region/per-pattern bookkeeping).
func logTrace(format string, args ...interface{}) {
	if glog.V(2) {
		glog.Infof(format, args...)
	}
}

func logDebug(format string, args ...interface{}) {
	if glog.V(1) {
		glog.Infof(format, args...)
	}
}

func logWarn(format string, args ...interface{}) {
	glog.Warningf(format, args...)
}
