package access

import _ "modernc.org/sqlite"
