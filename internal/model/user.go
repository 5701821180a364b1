// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// UserRecord is the per-user root record created in the remote store on
// first login. It is advisory metadata: entry migration does not depend on
// its existence.
type UserRecord struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	CreatedAt Millis `json:"createdAt"`
}
