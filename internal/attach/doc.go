// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach manages pending image attachments and their inline encoding.
//
// A Pending attachment exists between selection and send or removal. It owns
// a transient Handle that must be released exactly once. The Encoder turns
// raw image bytes into a self-describing data URL suitable for an image Part.
//
// # Usage
//
//	p, err := attach.FromFile("diagram.png", 5<<20)
//	if err != nil {
//	    return err
//	}
//	defer p.Release()
//
//	urls, err := attach.EncodeAll(ctx, attach.DataURLEncoder{}, []*attach.Pending{p})
package attach
