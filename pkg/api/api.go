/*
 * Copyright (C) 2024 eQualitie, inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package api

// Route is one entry of a generated route table. The field names and types
// are the on-disk schema of the output files and must not change.
type Route struct {
	Prefix  string `json:"prefix"`
	Mask    string `json:"mask"`
	Length  int    `json:"length"`
	Gateway string `json:"gateway"`
}

// GatewayMapping associates a gateway label with the countries whose address
// space is routed through it. Built from a `name=CC1,CC2,...` spec string.
type GatewayMapping struct {
	Gateway   string   `json:"gateway"`
	Countries []string `json:"countries"`
}
