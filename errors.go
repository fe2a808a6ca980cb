// Copyright 2023 TrueLayer Ltd.
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

package ginepro

import (
	"github.com/TrueLayer/ginepro/reconciler"
)

// ErrInitialResolutionFailed is returned by Builder.Channel under
// StrategyEager when no successful, non-empty resolution is observed
// before WithInitialLookupDeadline expires. It is the same error value as
// reconciler.ErrInitialResolutionFailed, so callers can errors.Is against
// either package.
var ErrInitialResolutionFailed = reconciler.ErrInitialResolutionFailed
